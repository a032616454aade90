package direct

import (
	"sort"
	"strings"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
)

var severityToPriority = map[string]string{
	"critical": "P1",
	"error":    "P2",
	"warning":  "P3",
	"info":     "P4",
}

func priorityFor(severity, fallback string) string {
	if p, ok := severityToPriority[strings.ToLower(severity)]; ok {
		return p
	}
	return fallback
}

func aliasFor(labels map[string]string) string {
	id := labels["alarm_id"]
	if id == "" {
		id = labels["event_id"]
	}
	if id == "" {
		return ""
	}
	return "zmc-" + id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

type incidentPayload struct {
	Message     string            `json:"message"`
	Alias       string            `json:"alias,omitempty"`
	Priority    string            `json:"priority"`
	Tags        []string          `json:"tags"`
	Details     map[string]string `json:"details"`
	Source      string            `json:"source"`
	Description string            `json:"description,omitempty"`
	Responders  []responder       `json:"responders,omitempty"`
}

type responder struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// toIncidentPayload converts a notification into its create-alert wire
// shape: message capped at 130 chars, tags capped at 20, description
// capped at 15000, labels/annotations flattened into details with
// label_/annotation_ prefixes.
func (c *Client) toIncidentPayload(n alarm.Notification) incidentPayload {
	severity := strings.ToLower(n.Labels["severity"])
	if severity == "" {
		severity = "warning"
	}

	message := n.Labels["alertname"]
	if message == "" {
		message = "Unknown Alert"
	}

	tags := []string{"zmc"}
	if code := n.Labels["alarm_code"]; code != "" {
		tags = append(tags, "alarm_code:"+code)
	}
	if source := n.Labels["source"]; source != "" {
		tags = append(tags, source)
	}
	tags = append(tags, severity)
	if len(tags) > 20 {
		tags = tags[:20]
	}

	details := make(map[string]string, len(n.Labels)+len(n.Annotations))
	labelKeys := make([]string, 0, len(n.Labels))
	for k := range n.Labels {
		labelKeys = append(labelKeys, k)
	}
	sort.Strings(labelKeys)
	for _, k := range labelKeys {
		if k == "alertname" {
			continue
		}
		details["label_"+k] = n.Labels[k]
	}
	annoKeys := make([]string, 0, len(n.Annotations))
	for k := range n.Annotations {
		annoKeys = append(annoKeys, k)
	}
	sort.Strings(annoKeys)
	for _, k := range annoKeys {
		details["annotation_"+k] = n.Annotations[k]
	}

	payload := incidentPayload{
		Message:  truncate(message, 130),
		Alias:    aliasFor(n.Labels),
		Priority: priorityFor(severity, c.defaultPriority),
		Tags:     tags,
		Details:  details,
		Source:   "zmc-alarm-reconciler",
	}

	if desc := n.Annotations["description"]; desc != "" {
		payload.Description = truncate(desc, 15000)
	}
	if c.defaultTeam != "" {
		payload.Responders = []responder{{Name: c.defaultTeam, Type: "team"}}
	}

	return payload
}

type notePayload struct {
	Source string `json:"source"`
	Note   string `json:"note"`
}

func closeNote() notePayload {
	return notePayload{Source: "zmc-alarm-reconciler", Note: "resolved by reconciler"}
}

func acknowledgeNote(comment string) notePayload {
	if comment == "" {
		comment = "silenced by reconciler"
	}
	return notePayload{Source: "zmc-alarm-reconciler", Note: comment}
}
