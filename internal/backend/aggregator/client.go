// Package aggregator implements the Alertmanager-style aggregator backend
// variant: a single batched POST of active/resolved notifications and an
// explicit suppression-rule (silence) lifecycle.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/bcore"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/httpx"
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	AuthUser string
	AuthPass string
}

// Client is the bcore.Client implementation talking to an
// Alertmanager-compatible aggregator.
type Client struct {
	baseURL   string
	authUser  string
	authPass  string
	transport *httpx.Transport
	logger    *slog.Logger
}

// New builds a Client.
func New(opts Options, transport *httpx.Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		authUser:  opts.AuthUser,
		authPass:  opts.AuthPass,
		transport: transport,
		logger:    logger,
	}
}

type wireAlert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    string            `json:"startsAt"`
	EndsAt      string            `json:"endsAt,omitempty"`
}

type wireMatcher struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	IsRegex bool   `json:"isRegex"`
}

type wireSilence struct {
	ID        string        `json:"id,omitempty"`
	Matchers  []wireMatcher `json:"matchers"`
	StartsAt  string        `json:"startsAt"`
	EndsAt    string        `json:"endsAt"`
	CreatedBy string        `json:"createdBy"`
	Comment   string        `json:"comment"`
}

func toWireAlert(n alarm.Notification) wireAlert {
	w := wireAlert{
		Labels:      n.Labels,
		Annotations: n.Annotations,
		StartsAt:    n.StartsAt.Format(time.RFC3339),
	}
	if n.EndsAt != nil {
		w.EndsAt = n.EndsAt.Format(time.RFC3339)
	}
	return w
}

func (c *Client) request(method, path string, body []byte) (*http.Request, error) {
	var bodyReader *strings.Reader
	if body != nil {
		bodyReader = strings.NewReader(string(body))
	} else {
		bodyReader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.authUser != "" {
		req.SetBasicAuth(c.authUser, c.authPass)
	}
	return req, nil
}

// Push sends the full notification batch as a single array POST; the
// aggregator deduplicates by label set on its side.
func (c *Client) Push(ctx context.Context, notifications []alarm.Notification) bcore.Result {
	wire := make([]wireAlert, 0, len(notifications))
	for _, n := range notifications {
		wire = append(wire, toWireAlert(n))
	}

	payload, err := httpx.EncodeJSON(wire)
	if err != nil {
		return bcore.Failure(0, 0, fmt.Errorf("encode alerts: %w", err))
	}

	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodPost, "/api/v2/alerts", payload)
	}, nil)
	if err != nil {
		return bcore.Failure(status, dur, err)
	}
	return bcore.Success(status, dur, fmt.Sprintf("pushed %d alerts", len(notifications)))
}

// CreateSuppression POSTs a new silence and returns its assigned id.
func (c *Client) CreateSuppression(ctx context.Context, rule alarm.SuppressionRule) (string, bcore.Result) {
	matchers := make([]wireMatcher, 0, len(rule.Matchers))
	for name, value := range rule.Matchers {
		matchers = append(matchers, wireMatcher{Name: name, Value: value})
	}

	payload, err := httpx.EncodeJSON(wireSilence{
		Matchers:  matchers,
		StartsAt:  rule.StartsAt.Format(time.RFC3339),
		EndsAt:    rule.EndsAt.Format(time.RFC3339),
		CreatedBy: rule.Creator,
		Comment:   rule.Comment,
	})
	if err != nil {
		return "", bcore.Failure(0, 0, fmt.Errorf("encode silence: %w", err))
	}

	body, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodPost, "/api/v2/silences", payload)
	}, nil)
	if err != nil {
		return "", bcore.Failure(status, dur, err)
	}

	var resp struct {
		SilenceID string `json:"silenceID"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", bcore.Failure(status, dur, fmt.Errorf("decode silence response: %w", err))
	}

	return resp.SilenceID, bcore.Success(status, dur, "")
}

// DeleteSuppression deletes a silence by id.
func (c *Client) DeleteSuppression(ctx context.Context, id string) bcore.Result {
	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodDelete, "/api/v2/silences/"+id, nil)
	}, nil)
	if err != nil {
		return bcore.Failure(status, dur, err)
	}
	return bcore.Success(status, dur, "")
}

// ListSuppressions returns the current silence set.
func (c *Client) ListSuppressions(ctx context.Context) ([]alarm.SuppressionRule, bcore.Result) {
	body, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodGet, "/api/v2/silences", nil)
	}, nil)
	if err != nil {
		return nil, bcore.Failure(status, dur, err)
	}

	var wire []wireSilence
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, bcore.Failure(status, dur, fmt.Errorf("decode silences: %w", err))
	}

	out := make([]alarm.SuppressionRule, 0, len(wire))
	for _, w := range wire {
		matchers := make(map[string]string, len(w.Matchers))
		for _, m := range w.Matchers {
			matchers[m.Name] = m.Value
		}
		startsAt, _ := time.Parse(time.RFC3339, w.StartsAt)
		endsAt, _ := time.Parse(time.RFC3339, w.EndsAt)
		out = append(out, alarm.SuppressionRule{
			Matchers: matchers,
			StartsAt: startsAt,
			EndsAt:   endsAt,
			Creator:  w.CreatedBy,
			Comment:  w.Comment,
		})
	}

	return out, bcore.Success(status, dur, "")
}

// ListActive returns the aggregator's active alert set.
func (c *Client) ListActive(ctx context.Context) ([]alarm.Notification, bcore.Result) {
	body, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodGet, "/api/v2/alerts", nil)
	}, nil)
	if err != nil {
		return nil, bcore.Failure(status, dur, err)
	}

	var wire []wireAlert
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, bcore.Failure(status, dur, fmt.Errorf("decode alerts: %w", err))
	}

	out := make([]alarm.Notification, 0, len(wire))
	for _, w := range wire {
		startsAt, _ := time.Parse(time.RFC3339, w.StartsAt)
		n := alarm.Notification{Labels: w.Labels, Annotations: w.Annotations, StartsAt: startsAt}
		if w.EndsAt != "" {
			endsAt, err := time.Parse(time.RFC3339, w.EndsAt)
			if err == nil {
				n.EndsAt = &endsAt
			}
		}
		out = append(out, n)
	}

	return out, bcore.Success(status, dur, "")
}

// Health checks the aggregator's /-/healthy endpoint.
func (c *Client) Health(ctx context.Context) bcore.Result {
	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodGet, "/-/healthy", nil)
	}, nil)
	if err != nil {
		return bcore.Failure(status, dur, err)
	}
	return bcore.Success(status, dur, "")
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() error {
	c.transport.HTTPClient.CloseIdleConnections()
	return nil
}
