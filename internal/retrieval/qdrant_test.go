package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecue/sonora/internal/model"
)

func TestParseQdrantURL_RemapsRESTPortToGRPC(t *testing.T) {
	host, port, useTLS, err := parseQdrantURL("https://xyz.cloud.qdrant.io:6333")
	require.NoError(t, err)
	assert.Equal(t, "xyz.cloud.qdrant.io", host)
	assert.Equal(t, 6334, port)
	assert.True(t, useTLS)
}

func TestParseQdrantURL_HonorsExplicitGRPCPort(t *testing.T) {
	host, port, useTLS, err := parseQdrantURL("http://localhost:6334")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 6334, port)
	assert.False(t, useTLS)
}

func TestParseQdrantURL_DefaultsToGRPCPortWhenAbsent(t *testing.T) {
	_, port, _, err := parseQdrantURL("http://localhost")
	require.NoError(t, err)
	assert.Equal(t, 6334, port)
}

func TestParseQdrantURL_RejectsInvalidURL(t *testing.T) {
	_, _, _, err := parseQdrantURL("::not a url::")
	assert.Error(t, err)
}

func TestBuildFilter_EmptyFiltersProduceNoConditions(t *testing.T) {
	conditions := buildFilter(model.Filters{})
	assert.Empty(t, conditions)
}

func TestBuildFilter_CombinesGenreMoodFormatAndBPMRange(t *testing.T) {
	min, max := 90, 140
	conditions := buildFilter(model.Filters{
		Genre:  "lofi",
		Mood:   "chill",
		Format: "track",
		BPMMin: &min,
		BPMMax: &max,
	})
	// genre, mood, format, and one combined bpm range condition.
	assert.Len(t, conditions, 4)
}

func TestBuildFilter_BPMRangeAloneIsOneCondition(t *testing.T) {
	min := 100
	conditions := buildFilter(model.Filters{BPMMin: &min})
	assert.Len(t, conditions, 1)
}
