package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// MaxLabelLen is the sanitized label-value bound.
const MaxLabelLen = 256

// Mapper converts Alarm values into Notifications and SuppressionRules. It
// carries the configured severity/state maps and static labels so the
// transformation stays pure and testable without a config dependency.
type Mapper struct {
	Severities    SeverityMap
	StaticLabels  map[string]string
	Generator     string
	CommentFormat string // printf format, not a text/template; see the default below
}

// NewMapper builds a Mapper with the default severity table and the
// static "generator" annotation.
func NewMapper(staticLabels map[string]string) Mapper {
	return Mapper{
		Severities:    DefaultSeverityMap(),
		StaticLabels:  staticLabels,
		Generator:     "zmc-alarm-reconciler",
		CommentFormat: "Auto-silenced by %s at %s: %s",
	}
}

var severityDescription = map[string]string{
	"critical": "Critical",
	"error":    "Error",
	"warning":  "Warning",
	"info":     "Informational",
}

// SanitizeLabelValue strips newlines and double quotes and truncates to
// MaxLabelLen.
func SanitizeLabelValue(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, `"`, "")
	if len(v) > MaxLabelLen {
		v = v[:MaxLabelLen]
	}
	return v
}

func instanceLabel(a Alarm) string {
	switch {
	case a.HostName != "" && a.HostIP != "":
		return fmt.Sprintf("%s@%s", a.HostName, a.HostIP)
	case a.HostName != "":
		return a.HostName
	case a.HostIP != "":
		return a.HostIP
	default:
		return fmt.Sprintf("device_%s", a.DeviceID)
	}
}

func resourceType(a Alarm) string {
	if a.HostName != "" || a.HostIP != "" {
		return "host"
	}
	return "device"
}

func alertName(a Alarm) string {
	if a.AlarmName != "" {
		return SanitizeLabelValue(a.AlarmName)
	}
	return fmt.Sprintf("ZMC_ALARM_%d", a.AlarmCode)
}

// resolutionTime picks the resolution timestamp: reset time if state is
// auto-cleared, else clear time, else confirm time, else now.
func resolutionTime(a Alarm) time.Time {
	switch {
	case a.State == storegw.StateAutoCleared && a.ResetTime != nil:
		return *a.ResetTime
	case a.ClearTime != nil:
		return *a.ClearTime
	case a.ConfirmTime != nil:
		return *a.ConfirmTime
	default:
		return time.Now()
	}
}

func startsAt(a Alarm) time.Time {
	if !a.EventTime.IsZero() {
		return a.EventTime
	}
	return a.CreateTime
}

// ToNotification builds the backend-facing Notification for alarm a. When
// resolved is true, EndsAt is populated from the resolution timestamp and
// the starts_at < ends_at invariant is enforced.
func (m Mapper) ToNotification(a Alarm, resolved bool) Notification {
	sev := m.Severities.Severity(a.Level)

	labels := map[string]string{
		"alertname":     alertName(a),
		"instance":      SanitizeLabelValue(instanceLabel(a)),
		"severity":      sev,
		"alarm_id":      strconv.FormatInt(a.AlarmID, 10),
		"event_id":      strconv.FormatInt(a.EventID, 10),
		"alarm_code":    strconv.FormatInt(a.AlarmCode, 10),
		"resource_type": resourceType(a),
	}
	if a.HostName != "" {
		labels["host"] = SanitizeLabelValue(a.HostName)
	}
	if a.Application != "" {
		labels["application"] = SanitizeLabelValue(a.Application)
	}
	if a.Domain != "" {
		labels["domain"] = SanitizeLabelValue(a.Domain)
	}
	if a.Environment != "" {
		labels["env"] = strings.ToLower(SanitizeLabelValue(a.Environment))
	}
	if a.TaskType != "" {
		labels["task_type"] = SanitizeLabelValue(a.TaskType)
	}
	for k, v := range m.StaticLabels {
		labels[k] = v
	}

	annotations := map[string]string{
		"generator": m.Generator,
	}
	if a.AlarmName != "" {
		annotations["summary"] = SanitizeLabelValue(a.AlarmName)
	} else {
		annotations["summary"] = fmt.Sprintf("ZMC Alert %d", a.AlarmCode)
	}
	annotations["severity_level"] = fmt.Sprintf("%s (%s)", strings.ToUpper(sev), severityDescription[sev])
	annotations["description"] = buildDescription(a, sev)
	if a.FaultReason != "" {
		annotations["fault_reason"] = a.FaultReason
	}
	if a.Remediation != "" {
		annotations["runbook"] = a.Remediation
	}
	if a.AlarmTypeName != "" {
		annotations["alarm_type"] = a.AlarmTypeName
	}
	for i, v := range a.Ext {
		if v != "" {
			annotations[fmt.Sprintf("data_%d", i+1)] = v
		}
	}

	n := Notification{
		Labels:      labels,
		Annotations: annotations,
		StartsAt:    startsAt(a),
	}

	if resolved {
		ends := resolutionTime(a)
		if !n.StartsAt.Before(ends) {
			n.StartsAt = ends.Add(-1 * time.Second)
		}
		n.EndsAt = &ends
	}

	return n
}

func buildDescription(a Alarm, sev string) string {
	var lines []string
	add := func(format string, args ...interface{}) {
		lines = append(lines, "• "+fmt.Sprintf(format, args...))
	}

	add("Severity: %s", sev)
	if a.Detail != "" {
		add("Detail: %s", a.Detail)
	}
	if a.HostName != "" {
		add("Host: %s", a.HostName)
	}
	if a.HostIP != "" {
		add("IP: %s", a.HostIP)
	}
	if a.Application != "" {
		add("Application: %s", a.Application)
	}
	if a.Domain != "" {
		add("Domain: %s", a.Domain)
	}
	if a.FaultReason != "" {
		add("Fault reason: %s", a.FaultReason)
	}
	if a.Remediation != "" {
		add("Suggestion: %s", a.Remediation)
	}

	// Two trailing spaces plus a newline forces a Markdown line break
	// between bullet points.
	return strings.Join(lines, "  \n")
}
