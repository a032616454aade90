package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseAlarm() Alarm {
	return Alarm{
		AlarmID:   1,
		EventID:   10,
		AlarmCode: 1001,
		Level:     1,
		HostName:  "host-1",
		EventTime: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestToNotification_LabelsCarrySeverityAndIdentity(t *testing.T) {
	m := NewMapper(nil)
	n := m.ToNotification(baseAlarm(), false)

	assert.Equal(t, "critical", n.Labels["severity"])
	assert.Equal(t, "1", n.Labels["alarm_id"])
	assert.Equal(t, "host-1", n.Labels["host"])
	assert.Equal(t, "host", n.Labels["resource_type"])
	assert.Nil(t, n.EndsAt, "an unresolved notification must not carry an end time")
}

func TestToNotification_OmitsTaskTypeAndAlarmTypeWhenAbsent(t *testing.T) {
	m := NewMapper(nil)
	n := m.ToNotification(baseAlarm(), false)

	_, hasTaskType := n.Labels["task_type"]
	assert.False(t, hasTaskType)
	_, hasAlarmType := n.Annotations["alarm_type"]
	assert.False(t, hasAlarmType)
}

func TestToNotification_EmitsTaskTypeLabelAndAlarmTypeAnnotationWhenPresent(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	a.TaskType = "network"
	a.AlarmTypeName = "connectivity"

	n := m.ToNotification(a, false)
	assert.Equal(t, "network", n.Labels["task_type"])
	assert.Equal(t, "connectivity", n.Annotations["alarm_type"])
}

func TestToNotification_StaticLabelsAreMerged(t *testing.T) {
	m := NewMapper(map[string]string{"team": "noc"})
	n := m.ToNotification(baseAlarm(), false)
	assert.Equal(t, "noc", n.Labels["team"])
}

func TestToNotification_SanitizesLabelValues(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	a.HostName = "bad\"host\nname"
	n := m.ToNotification(a, false)
	assert.NotContains(t, n.Labels["host"], "\"")
	assert.NotContains(t, n.Labels["host"], "\n")
}

func TestToNotification_SanitizeLabelValue_Truncates(t *testing.T) {
	long := make([]byte, MaxLabelLen+50)
	for i := range long {
		long[i] = 'x'
	}
	got := SanitizeLabelValue(string(long))
	assert.Len(t, got, MaxLabelLen)
}

func TestToNotification_ResolvedUsesClearTimeAndEnforcesOrdering(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	clear := a.EventTime.Add(time.Hour)
	a.ClearTime = &clear

	n := m.ToNotification(a, true)
	require.NotNil(t, n.EndsAt)
	assert.Equal(t, clear, *n.EndsAt)
	assert.True(t, n.StartsAt.Before(*n.EndsAt))
}

func TestToNotification_ResolvedWithoutClearTimesStillOrdersStartBeforeEnd(t *testing.T) {
	// No reset/clear/confirm time set: resolutionTime falls back to
	// time.Now(), which is before the future EventTime set below, so the
	// ordering guard is the one under test here, not the fallback itself.
	m := NewMapper(nil)
	a := baseAlarm()
	a.EventTime = time.Now().Add(time.Hour) // event "in the future" relative to resolution's time.Now() fallback

	n := m.ToNotification(a, true)
	require.NotNil(t, n.EndsAt)
	assert.True(t, n.StartsAt.Before(*n.EndsAt), "starts_at must never be >= ends_at")
}

func TestToNotification_AutoClearedPrefersResetTime(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	a.State = "A"
	reset := a.EventTime.Add(2 * time.Hour)
	clear := a.EventTime.Add(time.Hour)
	a.ResetTime = &reset
	a.ClearTime = &clear

	n := m.ToNotification(a, true)
	require.NotNil(t, n.EndsAt)
	assert.Equal(t, reset, *n.EndsAt)
}

func TestToNotification_ExtDataBecomesIndexedAnnotations(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	a.Ext[0] = "first"
	a.Ext[2] = "third"

	n := m.ToNotification(a, false)
	assert.Equal(t, "first", n.Annotations["data_1"])
	assert.Equal(t, "third", n.Annotations["data_3"])
	_, hasSecond := n.Annotations["data_2"]
	assert.False(t, hasSecond, "an empty Ext slot must not produce an annotation")
}

func TestToNotification_NoHostFallsBackToDeviceInstance(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	a.HostName = ""
	a.HostIP = ""
	a.DeviceID = "dev-42"

	n := m.ToNotification(a, false)
	assert.Equal(t, "device_dev-42", n.Labels["instance"])
	assert.Equal(t, "device", n.Labels["resource_type"])
}

func TestCreateSuppression_DefaultsDurationAndOperator(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	a.ClearReason = "noisy flap"
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	rule := m.CreateSuppression(a, 0, "", now)
	assert.Equal(t, DefaultSuppressionDuration, rule.EndsAt.Sub(rule.StartsAt))
	assert.Equal(t, "unknown", rule.Creator)
	assert.Contains(t, rule.Comment, "noisy flap")
	assert.Equal(t, "1", rule.Matchers["alarm_id"])
}

func TestCreateSuppression_HonorsExplicitDurationAndOperator(t *testing.T) {
	m := NewMapper(nil)
	a := baseAlarm()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	rule := m.CreateSuppression(a, 2*time.Hour, "jdoe", now)
	assert.Equal(t, 2*time.Hour, rule.EndsAt.Sub(rule.StartsAt))
	assert.Equal(t, "jdoe", rule.Creator)
}
