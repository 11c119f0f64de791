// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `{
	"version": "1.0.0",
	"lastUpdated": "2026-08-20",
	"activities": [
		{
			"id": "profile.taste.build",
			"displayName": "Build Taste Profile",
			"category": "profile",
			"taskType": "build-taste-profile",
			"errorCodes": ["EMPTY_WATCH_HISTORY"],
			"timeout": "120s",
			"retries": 3
		},
		{
			"id": "recommendation.candidates.score",
			"displayName": "Score Candidates",
			"category": "recommendation",
			"taskType": "score-candidates",
			"timeout": "60s"
		}
	]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o644))
	return path
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeSample(t))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", reg.Version)
	require.Len(t, reg.Activities, 2)
	assert.Equal(t, "build-taste-profile", reg.Activities[0].TaskType)
	assert.Equal(t, []string{"EMPTY_WATCH_HISTORY"}, reg.Activities[0].ErrorCodes)
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	reg, err := LoadRegistry(writeSample(t))
	require.NoError(t, err)

	byID, ok := reg.FindByID("recommendation.candidates.score")
	require.True(t, ok)
	assert.Equal(t, "score-candidates", byID.TaskType)

	byTask, ok := reg.FindByTaskType("build-taste-profile")
	require.True(t, ok)
	assert.Equal(t, "profile.taste.build", byTask.ID)

	_, ok = reg.FindByID("catalog.movies.sync")
	assert.False(t, ok)

	types := reg.TaskTypes()
	assert.True(t, types["score-candidates"])
	assert.False(t, types["rerank-recommendations"])
}
