package source

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/roivaz/pacc/internal/kinds"
)

// SyncEntry names one extension a team-sync document pins by source
// location and (optionally) an exact content hash to enforce.
type SyncEntry struct {
	Kind       kinds.Kind `json:"kind"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	ExpectHash string     `json:"expectHash,omitempty"`
	GitRef     string     `json:"gitRef,omitempty"`
	GitRemote  string     `json:"gitRemote,omitempty"`
}

// SyncDoc is a declarative, checked-in manifest (`.pacc-sync.yaml`) listing
// the extensions a team's project scope should carry. Engine.Sync resolves
// each entry through LocalDir/GitCheckout and installs the result into the
// scope; extensions already installed but not named by the document are
// left in place.
type SyncDoc struct {
	Version int         `json:"version"`
	Scope   kinds.Scope `json:"scope"`
	Entries []SyncEntry `json:"entries"`
}

// LoadSyncDoc reads and parses a sync document. sigs.k8s.io/yaml round-
// trips through JSON so SyncDoc's struct tags double as the YAML schema,
// matching how the rest of the engine treats YAML as JSON's surface form.
func LoadSyncDoc(path string) (SyncDoc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SyncDoc{}, fmt.Errorf("source: read sync doc %s: %w", path, err)
	}
	var doc SyncDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return SyncDoc{}, fmt.Errorf("source: parse sync doc %s: %w", path, err)
	}
	if !doc.Scope.Valid() {
		return SyncDoc{}, fmt.Errorf("source: sync doc %s: invalid scope %q", path, doc.Scope)
	}
	return doc, nil
}

// Resolve turns each SyncEntry into a Candidate via the matching adapter.
// A GitRef entry resolves through the already-checked-out worktree at Path,
// read at GitRef (no cloning); GitRemote is not consulted, origin_ref comes
// from the worktree's "origin" remote. Everything else resolves through
// LocalDir.
func (d SyncDoc) Resolve() ([]kinds.Candidate, error) {
	var out []kinds.Candidate
	for _, entry := range d.Entries {
		var candidates []kinds.Candidate
		var err error
		if entry.GitRef != "" {
			checkout := NewGitCheckout(NewGitRef(entry.Path, entry.GitRef))
			candidates, err = checkout.Scan()
		} else {
			candidates, err = NewLocalDir(entry.Path).Scan()
		}
		if err != nil {
			return nil, fmt.Errorf("source: resolve sync entry %s/%s: %w", entry.Kind, entry.Name, err)
		}
		for _, c := range candidates {
			if c.LogicalName != entry.Name || c.Kind != entry.Kind {
				continue
			}
			if entry.ExpectHash != "" && c.ContentHash != entry.ExpectHash {
				return nil, fmt.Errorf("source: sync entry %s/%s: content hash mismatch: want %s got %s",
					entry.Kind, entry.Name, entry.ExpectHash, c.ContentHash)
			}
			out = append(out, c)
		}
	}
	return out, nil
}
