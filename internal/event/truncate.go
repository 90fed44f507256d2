package event

import (
	"crypto/sha256"
	"fmt"
)

// TruncationMarker is appended to every truncated content field. It is
// fixed so downstream consumers can detect truncation deterministically,
// and it starts on its own line so it never fuses with the kept content.
const TruncationMarker = "\n…[truncated]"

// TruncMeta records what truncation did to a content field.
type TruncMeta struct {
	Truncated bool   `json:"truncated"`
	OrigLen   int    `json:"orig_len"`
	KeptLen   int    `json:"kept_len,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
}

// Truncate keeps at most max characters of s. When content is cut, the
// marker is appended and the hash of the full original is retained so the
// backend can still correlate identical content.
func Truncate(s string, max int) (string, TruncMeta) {
	runes := []rune(s)
	origLen := len(runes)
	if max <= 0 || origLen <= max {
		return s, TruncMeta{Truncated: false, OrigLen: origLen}
	}

	head := string(runes[:max])
	meta := TruncMeta{
		Truncated: true,
		OrigLen:   origLen,
		KeptLen:   max,
		SHA256:    fmt.Sprintf("%x", sha256.Sum256([]byte(s))),
	}
	return head + TruncationMarker, meta
}
