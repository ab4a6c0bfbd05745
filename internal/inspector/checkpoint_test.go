package inspector

import (
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, true)

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("load before save: ok=%v err=%v", ok, err)
	}

	if err := store.Save(1234); err != nil {
		t.Fatalf("save: %v", err)
	}

	cp, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load after save: ok=%v err=%v", ok, err)
	}
	if cp.LastBlock != 1234 {
		t.Fatalf("last block: got %d, want 1234", cp.LastBlock)
	}
	if cp.UpdatedAt.IsZero() {
		t.Fatalf("updated at not recorded")
	}

	if err := store.Save(1235); err != nil {
		t.Fatalf("second save: %v", err)
	}
	cp, _, _ = store.Load()
	if cp.LastBlock != 1235 {
		t.Fatalf("last block after update: got %d", cp.LastBlock)
	}
}

func TestCheckpointDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, false)

	if err := store.Save(10); err != nil {
		t.Fatalf("disabled save: %v", err)
	}
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("disabled load: ok=%v err=%v", ok, err)
	}
}
