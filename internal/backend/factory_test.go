package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/aggregator"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/direct"
)

func TestNew_AggregatorMode_RequiresURL(t *testing.T) {
	_, err := New(Config{Mode: ModeAggregator}, nil)
	assert.Error(t, err)
}

func TestNew_AggregatorMode_BuildsAggregatorClient(t *testing.T) {
	c, err := New(Config{Mode: ModeAggregator, Aggregator: AggregatorConfig{URL: "http://example.invalid"}}, nil)
	require.NoError(t, err)
	_, ok := c.(*aggregator.Client)
	assert.True(t, ok)
}

func TestNew_DirectMode_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{Mode: ModeDirect}, nil)
	assert.Error(t, err)
}

func TestNew_DirectMode_BuildsDirectClient(t *testing.T) {
	c, err := New(Config{Mode: ModeDirect, Direct: DirectConfig{APIKey: "key"}}, nil)
	require.NoError(t, err)
	_, ok := c.(*direct.Client)
	assert.True(t, ok)
}

func TestNew_UnknownMode_Errors(t *testing.T) {
	_, err := New(Config{Mode: "bogus"}, nil)
	assert.Error(t, err)
}
