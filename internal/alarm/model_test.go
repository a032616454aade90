package alarm

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

func TestFromRow_NullTimesBecomeNilPointers(t *testing.T) {
	row := storegw.AlarmRow{
		AlarmID: 7,
		Level:   2,
		State:   storegw.StateUnacknowledged,
	}
	a := FromRow(row)
	assert.Nil(t, a.ResetTime)
	assert.Nil(t, a.ClearTime)
	assert.Nil(t, a.ConfirmTime)
}

func TestFromRow_ValidTimesAreCopiedByValue(t *testing.T) {
	clear := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	row := storegw.AlarmRow{
		AlarmID:   7,
		ClearTime: sql.NullTime{Time: clear, Valid: true},
	}
	a := FromRow(row)
	require.NotNil(t, a.ClearTime)
	assert.Equal(t, clear, *a.ClearTime)
}
