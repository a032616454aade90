package aggregator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/httpx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	tr := httpx.New(5*time.Second, httpx.RetryConfig{MaxAttempts: 1, Interval: time.Millisecond}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := New(Options{BaseURL: srv.URL, AuthUser: "op", AuthPass: "secret"}, tr, nil)
	return c, srv
}

func TestClient_Push_SendsBatchWithBasicAuth(t *testing.T) {
	var got []wireAlert
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "op", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/api/v2/alerts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	now := time.Now()
	res := c.Push(context.Background(), []alarm.Notification{
		{Labels: map[string]string{"alertname": "a"}, StartsAt: now},
		{Labels: map[string]string{"alertname": "b"}, StartsAt: now, EndsAt: &now},
	})

	assert.True(t, res.OK)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].EndsAt)
	assert.NotEmpty(t, got[1].EndsAt)
}

func TestClient_CreateSuppression_ReturnsAssignedID(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/silences", r.URL.Path)
		body, _ := json.Marshal(map[string]string{"silenceID": "sil-1"})
		w.Write(body)
	})
	defer srv.Close()

	id, res := c.CreateSuppression(context.Background(), alarm.SuppressionRule{
		Matchers: map[string]string{"alarm_id": "1"},
		StartsAt: time.Now(),
		EndsAt:   time.Now().Add(time.Hour),
	})
	assert.True(t, res.OK)
	assert.Equal(t, "sil-1", id)
}

func TestClient_ListSuppressions_DecodesMatchers(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal([]wireSilence{{
			ID:        "sil-1",
			Matchers:  []wireMatcher{{Name: "alarm_id", Value: "1"}},
			StartsAt:  time.Now().Format(time.RFC3339),
			EndsAt:    time.Now().Add(time.Hour).Format(time.RFC3339),
			CreatedBy: "op",
		}})
		w.Write(body)
	})
	defer srv.Close()

	out, res := c.ListSuppressions(context.Background())
	require.True(t, res.OK)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].Matchers["alarm_id"])
	assert.Equal(t, "op", out[0].Creator)
}

func TestClient_Health_ChecksHealthyEndpoint(t *testing.T) {
	var gotPath string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	res := c.Health(context.Background())
	assert.True(t, res.OK)
	assert.Equal(t, "/-/healthy", gotPath)
}

func TestClient_DeleteSuppression_UsesIDInPath(t *testing.T) {
	var gotPath, gotMethod string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	res := c.DeleteSuppression(context.Background(), "sil-9")
	assert.True(t, res.OK)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v2/silences/sil-9", gotPath)
}
