// Package source implements the source adapters (spec §4.6): turning a
// filesystem location into a set of Candidates the validation pipeline and
// orchestrator can act on. Every adapter here is local-only — no adapter
// performs network I/O, matching the engine's transport Non-goal.
package source

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/roivaz/pacc/internal/kinds"
)

// Adapter produces Candidates from one kind of source location.
type Adapter interface {
	// Name identifies the adapter for diagnostics (e.g. "localdir", "git").
	Name() string
	// Scan walks the source and returns one Candidate per extension found,
	// with Kind classified and ContentHash/Body populated but not yet
	// validated.
	Scan() ([]kinds.Candidate, error)
}

var newlineRun = regexp.MustCompile(`\r\n?`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalizeContent applies the normalizations spec §4.6 requires before
// hashing: a leading UTF-8 BOM is stripped and CRLF/CR line endings
// collapse to LF, so a file checked out on a different platform or saved
// by an editor that stamps a BOM hashes identically to a plain copy of
// the same content.
func normalizeContent(raw []byte) []byte {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	return newlineRun.ReplaceAll(raw, []byte("\n"))
}

// contentHash hashes normalized content; this is the ContentHash every
// adapter stamps onto its Candidates and the same function the hashes
// sidecar compares against on reinstall.
func contentHash(raw []byte) string {
	sum := sha256.Sum256(normalizeContent(raw))
	return hex.EncodeToString(sum[:])
}
