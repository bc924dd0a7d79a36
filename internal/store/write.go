package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tidwall/pretty"
)

// StagedWrite is the in-memory result of Stage: the proposed next
// documents and the precise byte images Commit will write. Nothing is
// touched on disk until Commit runs.
type StagedWrite struct {
	Documents    Documents
	PrefsBytes   []byte
	StateBytes   []byte
	HashesBytes  []byte
	paths        Paths
}

// Stage renders next into its byte images (stable, pretty-printed JSON —
// spec requires byte-for-byte equality across round-trips) without writing
// anything.
func Stage(scopeRoot string, next Documents) (StagedWrite, error) {
	prefsBytes, err := marshalPretty(next.Prefs)
	if err != nil {
		return StagedWrite{}, fmt.Errorf("stage preferences: %w", err)
	}
	stateBytes, err := marshalPretty(next.State)
	if err != nil {
		return StagedWrite{}, fmt.Errorf("stage engine state: %w", err)
	}
	hashesBytes, err := marshalPretty(next.Hashes)
	if err != nil {
		return StagedWrite{}, fmt.Errorf("stage hashes: %w", err)
	}
	return StagedWrite{
		Documents:   next,
		PrefsBytes:  prefsBytes,
		StateBytes:  stateBytes,
		HashesBytes: hashesBytes,
		paths:       DocumentPaths(scopeRoot),
	}, nil
}

func marshalPretty(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	formatted := pretty.PrettyOptions(raw, &pretty.Options{Indent: "  ", SortKeys: true})
	return append(formatted, '\n'), nil
}

// Commit performs an atomic replace of each document via write-to-temp-
// then-rename within scopeRoot (same filesystem, POSIX rename semantics).
// It is all-or-nothing with respect to each individual document; the
// orchestrator (spec §4.5) is responsible for treating the pair as one
// logical commit.
func Commit(sw StagedWrite) error {
	if err := atomicWrite(sw.paths.Prefs, sw.PrefsBytes); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	if err := atomicWrite(sw.paths.State, sw.StateBytes); err != nil {
		return fmt.Errorf("commit engine state: %w", err)
	}
	if err := atomicWrite(sw.paths.Hashes, sw.HashesBytes); err != nil {
		return fmt.Errorf("commit hashes: %w", err)
	}
	return nil
}

// atomicWrite writes data to a sibling temp file carrying a unique suffix
// and renames it over dest. The temp file is removed on any failure path.
func atomicWrite(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(dest), uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
