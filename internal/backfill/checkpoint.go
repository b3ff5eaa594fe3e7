package backfill

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/suppscan/score-cli/internal/model"
)

// LoadCheckpoint reads the checkpoint file at path. A missing file returns
// (nil, nil): the run starts from its configured cursor.
func LoadCheckpoint(path string) (*model.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: read %s", path)
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: parse %s", path)
	}
	return &cp, nil
}

// SaveCheckpoint overwrites the checkpoint atomically: write to a temp file
// in the same directory, then rename over the target. A crash mid-write
// leaves the previous checkpoint intact.
func SaveCheckpoint(path string, cp *model.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return eris.Wrapf(err, "checkpoint: create temp in %s", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "checkpoint: write temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "checkpoint: close temp")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "checkpoint: rename to %s", path)
	}
	return nil
}
