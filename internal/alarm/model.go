// Package alarm holds the pure, I/O-free transformation from a store row to
// a backend-ready notification: severity/state mapping, filtering, label
// sanitization, and suppression-rule construction.
package alarm

import (
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// Alarm is the engine-facing value type mirroring storegw.AlarmRow.
type Alarm struct {
	AlarmID     int64
	EventID     int64
	AlarmCode   int64
	Level       int
	State       storegw.UpstreamState
	HostName    string
	HostIP      string
	Application string
	Domain      string
	Environment string
	Detail      string
	Ext         [10]string
	EventTime   time.Time
	CreateTime  time.Time
	ResetTime   *time.Time
	ClearTime   *time.Time
	ConfirmTime *time.Time
	ClearReason string

	AlarmName     string
	FaultReason   string
	Remediation   string
	DeviceID      string
	TaskType      string
	AlarmTypeName string
}

// FromRow converts a storegw.AlarmRow into the engine-facing Alarm value.
func FromRow(r storegw.AlarmRow) Alarm {
	a := Alarm{
		AlarmID:     r.AlarmID,
		EventID:     r.EventID,
		AlarmCode:   r.AlarmCode,
		Level:       r.Level,
		State:       r.State,
		HostName:    r.HostName,
		HostIP:      r.HostIP,
		Application: r.Application,
		Domain:      r.Domain,
		Environment: r.Environment,
		Detail:      r.Detail,
		Ext:         r.Ext,
		EventTime:   r.EventTime,
		CreateTime:  r.CreateTime,
		ClearReason: r.ClearReason,
		AlarmName:     r.AlarmName,
		FaultReason:   r.FaultReason,
		Remediation:   r.Remediation,
		DeviceID:      r.DeviceID,
		TaskType:      r.TaskType,
		AlarmTypeName: r.AlarmTypeName,
	}
	if r.ResetTime.Valid {
		t := r.ResetTime.Time
		a.ResetTime = &t
	}
	if r.ClearTime.Valid {
		t := r.ClearTime.Time
		a.ClearTime = &t
	}
	if r.ConfirmTime.Valid {
		t := r.ConfirmTime.Time
		a.ConfirmTime = &t
	}
	return a
}

// Notification is the derived, backend-agnostic representation of an alarm
// at a point in time.
type Notification struct {
	Labels      map[string]string
	Annotations map[string]string
	StartsAt    time.Time
	EndsAt      *time.Time
}

// SuppressionRule is the backend-agnostic suppression request built by
// CreateSuppression.
type SuppressionRule struct {
	Matchers map[string]string
	StartsAt time.Time
	EndsAt   time.Time
	Creator  string
	Comment  string
}
