package alarm

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultSuppressionDuration is the default suppression window: 24h.
const DefaultSuppressionDuration = 24 * time.Hour

// CreateSuppression builds the suppression request for a manually-cleared
// alarm: matcher on alarm_id, times in UTC starting at now, Creator set to
// operator ("unknown" when empty), and the comment rendered from
// m.CommentFormat with the operator, the start time (RFC 3339) and the
// alarm's clear reason ("manual clear" when empty).
func (m Mapper) CreateSuppression(a Alarm, duration time.Duration, operator string, now time.Time) SuppressionRule {
	if duration <= 0 {
		duration = DefaultSuppressionDuration
	}
	start := now.UTC()

	reason := a.ClearReason
	if reason == "" {
		reason = "manual clear"
	}
	if operator == "" {
		operator = "unknown"
	}

	return SuppressionRule{
		Matchers: map[string]string{"alarm_id": strconv.FormatInt(a.AlarmID, 10)},
		StartsAt: start,
		EndsAt:   start.Add(duration),
		Creator:  operator,
		Comment:  fmt.Sprintf(m.CommentFormat, operator, start.Format(time.RFC3339), reason),
	}
}
