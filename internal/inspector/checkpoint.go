package inspector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint records how far classification has progressed, so a
// restarted run resumes at the next block instead of re-acquiring
// already classified ranges.
type Checkpoint struct {
	LastBlock uint64    `json:"last_block"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointStore persists the classification checkpoint to disk.
// When disabled, Load reports no checkpoint and Save is a no-op.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled}
}

// Load reads the checkpoint. The second return value is false when no
// checkpoint exists yet.
func (s *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !s.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}

	return cp, true, nil
}

// Save records lastBlock as classified. The write goes through a temp
// file and rename so an interrupted run never leaves a torn checkpoint.
func (s *CheckpointStore) Save(lastBlock uint64) error {
	if !s.enabled {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		LastBlock: lastBlock,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
