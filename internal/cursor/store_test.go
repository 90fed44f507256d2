package cursor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), DefaultLockConfig())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestKeyStable(t *testing.T) {
	a := Key("sess", "/tmp/t.jsonl")
	b := Key("sess", "/tmp/t.jsonl")
	if a != b {
		t.Errorf("key not stable: %s vs %s", a, b)
	}
	if a == Key("sess", "/tmp/other.jsonl") {
		t.Error("different source refs must produce different keys")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestLoadAbsent(t *testing.T) {
	s := newTestStore(t)
	rec, exists, err := s.Load(Key("none", ""))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("absent record reported as existing")
	}
	if rec.Version != 0 || rec.Offset != 0 {
		t.Errorf("absent record not zero: %+v", rec)
	}
}

func TestCommitAndReload(t *testing.T) {
	s := newTestStore(t)
	key := Key("sess", "/tmp/t.jsonl")

	prev, _, err := s.Load(key)
	if err != nil {
		t.Fatal(err)
	}
	next := prev
	next.Offset = 512
	next.TurnCount = 2
	if err := s.Commit(key, prev, next); err != nil {
		t.Fatal(err)
	}

	got, exists, err := s.Load(key)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("committed record not found")
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if got.Offset != 512 || got.TurnCount != 2 {
		t.Errorf("record = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestCommitConflict(t *testing.T) {
	s := newTestStore(t)
	key := Key("sess", "ref")

	base, _, _ := s.Load(key)
	first := base
	first.Offset = 100
	if err := s.Commit(key, base, first); err != nil {
		t.Fatal(err)
	}

	// A second invocation that loaded before the first committed.
	stale := base
	stale.Offset = 50
	err := s.Commit(key, base, stale)
	if !errors.Is(err, hookerr.ErrCursorConflict) {
		t.Fatalf("err = %v, want ErrCursorConflict", err)
	}

	// The winner's progress must be intact.
	got, _, _ := s.Load(key)
	if got.Offset != 100 || got.Version != 1 {
		t.Errorf("winning record clobbered: %+v", got)
	}

	// Reload-and-retry succeeds.
	current, _, _ := s.Load(key)
	retry := current
	retry.Offset = 150
	if err := s.Commit(key, current, retry); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.Load(key)
	if got.Version != 2 || got.Offset != 150 {
		t.Errorf("retry result: %+v", got)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	s := newTestStore(t)
	key := Key("sess", "ref")
	if err := os.WriteFile(s.recordPath(key), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	rec, exists, err := s.Load(key)
	if err != nil {
		t.Fatalf("corrupt record must not error: %v", err)
	}
	if exists || rec.Version != 0 {
		t.Errorf("corrupt record must read as no progress: exists=%v %+v", exists, rec)
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	key := Key("old", "ref")

	var base Record
	next := base
	next.Offset = 1
	if err := s.Commit(key, base, next); err != nil {
		t.Fatal(err)
	}

	path := s.recordPath(key)
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}

	pruned, err := s.Prune(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale record still present")
	}

	// Fresh records survive.
	if err := s.Commit(Key("fresh", "ref"), Record{}, Record{Offset: 9}); err != nil {
		t.Fatal(err)
	}
	pruned, err = s.Prune(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 0 {
		t.Errorf("pruned fresh record")
	}
	entries, _ := os.ReadDir(s.dir)
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			found = true
		}
	}
	if !found {
		t.Error("fresh record missing after prune")
	}
}
