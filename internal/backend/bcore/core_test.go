package bcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuccess_SetsOKTrue(t *testing.T) {
	r := Success(200, time.Millisecond, "ok")
	assert.True(t, r.OK)
	assert.Nil(t, r.Err)
}

func TestFailure_SetsOKFalse(t *testing.T) {
	r := Failure(500, time.Millisecond, assert.AnError)
	assert.False(t, r.OK)
	assert.Equal(t, assert.AnError, r.Err)
}
