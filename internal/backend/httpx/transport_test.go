package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransport(retry RetryConfig) *Transport {
	return New(5*time.Second, retry, 0, nil)
}

func TestTransport_Do_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTransport(RetryConfig{MaxAttempts: 3, Interval: time.Millisecond})
	_, status, _, err := tr.Do(context.Background(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTransport_Do_NeverRetriesOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := newTransport(RetryConfig{MaxAttempts: 3, Interval: time.Millisecond})
	_, status, _, err := tr.Do(context.Background(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 4xx is a permanent failure and must never be retried")
}

func TestTransport_Do_ExhaustsRetriesOnPersistent5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := newTransport(RetryConfig{MaxAttempts: 3, Interval: time.Millisecond})
	_, status, _, err := tr.Do(context.Background(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTransport_Do_AcceptStatusOverridesFailureDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := newTransport(RetryConfig{MaxAttempts: 3, Interval: time.Millisecond})
	_, status, _, err := tr.Do(context.Background(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, func(code int) bool { return code == http.StatusNotFound })

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTransport_Do_RespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := newTransport(RetryConfig{MaxAttempts: 5, Interval: 50 * time.Millisecond})
	tr.Limiter = nil

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, _, err := tr.Do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, nil)
	assert.Error(t, err)
}

func TestEncodeJSON_DoesNotEscapeHTML(t *testing.T) {
	body, err := EncodeJSON(map[string]string{"alertname": "a<b>&c"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "<b>")
}
