package backfill

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suppscan/score-cli/internal/model"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	cp := &model.Checkpoint{
		Source:    "dsld",
		LastID:    1500,
		NextStart: 1500,
		Stats: model.CheckpointStats{
			Pages:   3,
			Items:   1500,
			Written: 1200,
			Skipped: 250,
			Failed:  50,
		},
		UpdatedAt: time.Date(2025, 8, 29, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, SaveCheckpoint(path, cp))

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, cp, loaded)
}

func TestCheckpoint_MissingFileIsNil(t *testing.T) {
	loaded, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCheckpoint_OverwriteKeepsLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	require.NoError(t, SaveCheckpoint(path, &model.Checkpoint{Source: "dsld", NextStart: 100}))
	require.NoError(t, SaveCheckpoint(path, &model.Checkpoint{Source: "dsld", NextStart: 200}))

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, int64(200), loaded.NextStart)
}

func TestCheckpointStats_Add(t *testing.T) {
	var s model.CheckpointStats
	s.Add(model.Outcome{Kind: model.OutcomeWritten})
	s.Add(model.Outcome{Kind: model.OutcomeSkippedExisting})
	s.Add(model.Outcome{Kind: model.OutcomeSkipped})
	s.Add(model.Outcome{Kind: model.OutcomeFailed})

	assert.Equal(t, 4, s.Items)
	assert.Equal(t, 1, s.Written)
	assert.Equal(t, 1, s.SkippedExisting)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
}
