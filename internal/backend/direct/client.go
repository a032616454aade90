// Package direct implements the Opsgenie-style direct-incident backend
// variant: alerts are created and closed one at a time (no batch endpoint),
// and suppression is simulated with acknowledge/close since Opsgenie has no
// Alertmanager-style silence API.
package direct

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/bcore"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/httpx"
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	DefaultTeam     string
	DefaultPriority string
}

// Client is the bcore.Client implementation talking to Opsgenie's v2 API.
type Client struct {
	baseURL         string
	apiKey          string
	defaultTeam     string
	defaultPriority string
	transport       *httpx.Transport
	logger          *slog.Logger
}

// New builds a Client.
func New(opts Options, transport *httpx.Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.opsgenie.com"
	}
	priority := opts.DefaultPriority
	if priority == "" {
		priority = "P3"
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          opts.APIKey,
		defaultTeam:     opts.DefaultTeam,
		defaultPriority: priority,
		transport:       transport,
		logger:          logger,
	}
}

func (c *Client) request(method, path string, body []byte) (*http.Request, error) {
	var reader *strings.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "GenieKey "+c.apiKey)
	return req, nil
}

func is2xx(code int) bool { return code >= 200 && code < 300 }

// Push creates or closes each notification individually — Opsgenie has no
// batch endpoint. A non-nil EndsAt means close-by-alias; otherwise create.
func (c *Client) Push(ctx context.Context, notifications []alarm.Notification) bcore.Result {
	var succeeded, failed int
	var firstErr error

	for _, n := range notifications {
		var res bcore.Result
		if n.EndsAt != nil {
			res = c.closeAlert(ctx, n)
		} else {
			res = c.createAlert(ctx, n)
		}
		if res.OK {
			succeeded++
		} else {
			failed++
			if firstErr == nil {
				firstErr = res.Err
			}
		}
	}

	if failed > 0 {
		return bcore.Failure(0, 0, fmt.Errorf("opsgenie push: %d succeeded, %d failed (first error: %w)", succeeded, failed, firstErr))
	}
	return bcore.Success(0, 0, fmt.Sprintf("pushed %d alerts", succeeded))
}

func (c *Client) createAlert(ctx context.Context, n alarm.Notification) bcore.Result {
	payload, err := httpx.EncodeJSON(c.toIncidentPayload(n))
	if err != nil {
		return bcore.Failure(0, 0, fmt.Errorf("encode alert: %w", err))
	}

	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodPost, "/v2/alerts", payload)
	}, nil)
	if err != nil {
		return bcore.Failure(status, dur, err)
	}
	return bcore.Success(status, dur, "")
}

func (c *Client) closeAlert(ctx context.Context, n alarm.Notification) bcore.Result {
	alias := aliasFor(n.Labels)
	if alias == "" {
		return bcore.Failure(0, 0, fmt.Errorf("cannot close opsgenie alert without alarm_id or event_id label"))
	}

	payload, err := httpx.EncodeJSON(closeNote())
	if err != nil {
		return bcore.Failure(0, 0, fmt.Errorf("encode close note: %w", err))
	}

	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodPost, "/v2/alerts/"+alias+"/close?identifierType=alias", payload)
	}, func(code int) bool { return code == http.StatusNotFound })
	if err != nil {
		return bcore.Failure(status, dur, err)
	}
	return bcore.Success(status, dur, "")
}

// CreateSuppression acknowledges the alias'd alert, which pauses its
// notifications in Opsgenie until the alarm clears or the ack expires. The
// returned id is the alias itself — Opsgenie has no separate silence
// resource to key off.
func (c *Client) CreateSuppression(ctx context.Context, rule alarm.SuppressionRule) (string, bcore.Result) {
	eventID := rule.Matchers["alarm_id"]
	if eventID == "" {
		eventID = rule.Matchers["event_id"]
	}
	if eventID == "" {
		return "", bcore.Failure(0, 0, fmt.Errorf("opsgenie suppression requires an alarm_id or event_id matcher"))
	}
	alias := "zmc-" + eventID

	payload, err := httpx.EncodeJSON(acknowledgeNote(rule.Comment))
	if err != nil {
		return "", bcore.Failure(0, 0, fmt.Errorf("encode acknowledge note: %w", err))
	}

	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodPost, "/v2/alerts/"+alias+"/acknowledge?identifierType=alias", payload)
	}, func(code int) bool { return code == http.StatusNotFound })
	if err != nil {
		return "", bcore.Failure(status, dur, err)
	}
	return alias, bcore.Success(status, dur, "")
}

// DeleteSuppression closes the aliased alert, Opsgenie's closest equivalent
// to removing an acknowledge.
func (c *Client) DeleteSuppression(ctx context.Context, id string) bcore.Result {
	payload, err := httpx.EncodeJSON(notePayload{Source: "zmc-alarm-reconciler", Note: "suppression removed by reconciler"})
	if err != nil {
		return bcore.Failure(0, 0, fmt.Errorf("encode close note: %w", err))
	}

	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodPost, "/v2/alerts/"+id+"/close?identifierType=alias", payload)
	}, func(code int) bool { return code == http.StatusNotFound })
	if err != nil {
		return bcore.Failure(status, dur, err)
	}
	return bcore.Success(status, dur, "")
}

// ListSuppressions always returns empty: Opsgenie has no queryable silence
// resource, only the acknowledge state on individual alerts.
func (c *Client) ListSuppressions(ctx context.Context) ([]alarm.SuppressionRule, bcore.Result) {
	return nil, bcore.Success(0, 0, "opsgenie has no silence listing endpoint")
}

// ListActive returns the currently open alerts.
func (c *Client) ListActive(ctx context.Context) ([]alarm.Notification, bcore.Result) {
	body, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodGet, "/v2/alerts?query=status:open", nil)
	}, nil)
	if err != nil {
		return nil, bcore.Failure(status, dur, err)
	}

	var resp struct {
		Data []struct {
			Tags   []string `json:"tags"`
			Alias  string   `json:"alias"`
			Status string   `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, bcore.Failure(status, dur, fmt.Errorf("decode alerts: %w", err))
	}

	out := make([]alarm.Notification, 0, len(resp.Data))
	for _, a := range resp.Data {
		out = append(out, alarm.Notification{Labels: map[string]string{"alias": a.Alias}})
	}
	return out, bcore.Success(status, dur, "")
}

// Health calls /v2/account to verify the API key and connectivity.
func (c *Client) Health(ctx context.Context) bcore.Result {
	_, status, dur, err := c.transport.Do(ctx, func() (*http.Request, error) {
		return c.request(http.MethodGet, "/v2/account", nil)
	}, nil)
	if err != nil {
		return bcore.Failure(status, dur, err)
	}
	if !is2xx(status) {
		return bcore.Failure(status, dur, fmt.Errorf("opsgenie account check returned %d", status))
	}
	return bcore.Success(status, dur, "")
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() error {
	c.transport.HTTPClient.CloseIdleConnections()
	return nil
}
