package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_INT_BAD="abc" is not a valid integer`, err.Error())
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.15")
	v, err := envFloat("TEST_FLOAT", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, v, 1e-12)
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	require.Error(t, err)
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.RetrievalK)
	assert.Equal(t, 50, cfg.RerankK)
	assert.Equal(t, 20, cfg.ResultN)
	assert.Equal(t, "ucb", cfg.ExplorationMode)
	assert.InDelta(t, 0.70, cfg.MMRLambda, 1e-9)
}

func TestValidate_WeightSumMustBeOne(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.WeightFreshness = 0.11 // sum becomes 1.01
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "sum to 1"))
}

func TestValidate_KOrderingEnforced(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.RerankK = cfg.RetrievalK + 1
	err = cfg.Validate()
	require.Error(t, err)
}

func TestValidate_ExplorationModeEnum(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.ExplorationMode = "bogus"
	err = cfg.Validate()
	require.Error(t, err)
}

func TestLoad_AllEnvVarsHonored(t *testing.T) {
	t.Setenv("SONORA_WEIGHT_SEMANTIC", "0.40")
	t.Setenv("SONORA_WEIGHT_POPULARITY", "0.30")
	t.Setenv("SONORA_WEIGHT_EXPLORATION", "0.20")
	t.Setenv("SONORA_WEIGHT_FRESHNESS", "0.10")
	t.Setenv("SONORA_RERANKER_TIMEOUT", "1s")
	t.Setenv("SONORA_EXPLORATION_MODE", "thompson")

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.40, cfg.WeightSemantic, 1e-9)
	assert.Equal(t, time.Second, cfg.RerankerTimeout)
	assert.Equal(t, "thompson", cfg.ExplorationMode)
}
