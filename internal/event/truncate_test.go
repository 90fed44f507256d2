package event

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"
)

func TestTruncateUnderLimit(t *testing.T) {
	got, meta := Truncate("hello", 10)
	if got != "hello" {
		t.Errorf("content changed: %q", got)
	}
	if meta.Truncated {
		t.Error("should not be marked truncated")
	}
	if meta.OrigLen != 5 {
		t.Errorf("orig len = %d, want 5", meta.OrigLen)
	}
}

func TestTruncateOverLimit(t *testing.T) {
	full := strings.Repeat("a", 100)
	got, meta := Truncate(full, 10)

	want := strings.Repeat("a", 10) + TruncationMarker
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !strings.HasSuffix(got, "\n…[truncated]") {
		t.Errorf("marker must start on its own line, got %q", got)
	}
	if !meta.Truncated {
		t.Error("should be marked truncated")
	}
	if meta.OrigLen != 100 || meta.KeptLen != 10 {
		t.Errorf("lengths = %d/%d, want 100/10", meta.OrigLen, meta.KeptLen)
	}
	wantSum := fmt.Sprintf("%x", sha256.Sum256([]byte(full)))
	if meta.SHA256 != wantSum {
		t.Errorf("sha256 = %s, want %s", meta.SHA256, wantSum)
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	// 6 runes, 18 bytes: the limit applies per rune, not per byte.
	full := "日本語日本語"
	got, meta := Truncate(full, 3)
	if got != "日本語"+TruncationMarker {
		t.Errorf("got %q", got)
	}
	if meta.OrigLen != 6 || meta.KeptLen != 3 {
		t.Errorf("lengths = %d/%d, want 6/3", meta.OrigLen, meta.KeptLen)
	}
}

func TestTruncateAtExactLimit(t *testing.T) {
	got, meta := Truncate("abcde", 5)
	if got != "abcde" || meta.Truncated {
		t.Errorf("exact-length content must pass through, got %q truncated=%v", got, meta.Truncated)
	}
}

func TestTruncateZeroMaxDisablesLimit(t *testing.T) {
	got, meta := Truncate("abc", 0)
	if got != "abc" || meta.Truncated {
		t.Errorf("max<=0 must disable truncation, got %q truncated=%v", got, meta.Truncated)
	}
}
