// Package cursor persists per-session read progress across hook
// invocations. Each invocation is an independent process; the only
// synchronization point between overlapping invocations for the same
// session is the compare-and-swap commit implemented here.
package cursor

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// Record is one session's persisted watermark. Offset tracks file-backed
// sources; LastSeq is the highest sequence folded into an emitted turn for
// stream-backed ones. Only one of the two is meaningful for a given
// session. Pending holds stream events belonging to a turn that has not
// closed yet (stdin is one-shot, so they cannot be re-read).
type Record struct {
	Version   int              `json:"version"`
	Offset    int64            `json:"offset,omitempty"`
	LastSeq   uint64           `json:"last_seq,omitempty"`
	TurnCount int              `json:"turn_count"`
	Pending   []event.RawEvent `json:"pending,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// LockConfig bounds how long a commit waits for a concurrent invocation.
type LockConfig struct {
	Timeout  time.Duration
	Retry    time.Duration
	MaxRetry int
}

func DefaultLockConfig() LockConfig {
	return LockConfig{
		Timeout:  2 * time.Second,
		Retry:    50 * time.Millisecond,
		MaxRetry: 40,
	}
}

// Store keeps one record file per state key under dir.
type Store struct {
	dir     string
	lockCfg LockConfig
}

func NewStore(dir string, lockCfg LockConfig) (*Store, error) {
	if lockCfg.MaxRetry <= 0 {
		lockCfg = DefaultLockConfig()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &Store{dir: dir, lockCfg: lockCfg}, nil
}

// Key derives the state key for a session and its source reference.
// Hashing keeps arbitrary transcript paths filesystem-safe.
func Key(sessionID, sourceRef string) string {
	sum := sha256.Sum256([]byte(sessionID + "::" + sourceRef))
	return fmt.Sprintf("%x", sum)
}

// Load reads the record for key. A missing or corrupt file means no prior
// progress: the caller re-reads the source from the beginning, which is
// safe because delivery is at-least-once.
func (s *Store) Load(key string) (Record, bool, error) {
	data, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("Corrupt cursor record, treating as no prior progress", "key", key, "error", err)
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Commit atomically replaces the record for key, but only if nothing has
// advanced it since prev was loaded. On a lost race it returns
// ErrCursorConflict and the caller reloads the winning record and
// recomputes which events are still new; the cursor never moves backward
// behind a concurrent invocation's back.
func (s *Store) Commit(key string, prev Record, next Record) error {
	release, err := s.acquireLock(key)
	if err != nil {
		return err
	}
	defer release()

	current, exists, err := s.Load(key)
	if err != nil {
		return err
	}
	if exists && current.Version != prev.Version {
		return fmt.Errorf("version %d superseded by %d: %w",
			prev.Version, current.Version, hookerr.ErrCursorConflict)
	}

	next.Version = prev.Version + 1
	next.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.recordPath(key), bytes.NewReader(data))
}

// Prune removes records not updated within maxAge. Housekeeping only;
// never called on the hook path.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err == nil {
			pruned++
			os.Remove(filepath.Join(s.dir, strings.TrimSuffix(name, ".json")+".lock"))
		}
	}
	return pruned, nil
}

func (s *Store) recordPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) acquireLock(key string) (func(), error) {
	lockPath := filepath.Join(s.dir, key+".lock")
	fl := flock.New(lockPath)

	for i := 0; i < s.lockCfg.MaxRetry; i++ {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", lockPath, err)
		}
		if locked {
			return func() {
				if err := fl.Unlock(); err != nil {
					slog.Error("Failed to release cursor lock", "path", lockPath, "error", err)
				}
			}, nil
		}
		if i < s.lockCfg.MaxRetry-1 {
			time.Sleep(s.lockCfg.Retry)
		}
	}

	return nil, fmt.Errorf("cursor record %s is locked by another invocation (timeout after %v)",
		key, s.lockCfg.Timeout)
}
