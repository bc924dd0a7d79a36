package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roivaz/pacc/internal/kinds"
	"github.com/roivaz/pacc/internal/validate"
)

// pluginManifestName is the file a plugin directory must carry for
// LocalDir to recognize it as a KindPlugin candidate instead of a loose
// bag of files.
const pluginManifestName = "plugin.json"

// pluginManifest names the components a plugin bundles, each a path
// relative to the plugin directory.
type pluginManifest struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Components []string `json:"components"`
}

// LocalDir scans a directory (or a single file) on the local filesystem.
// Extracted archives and the non-git entries of a team-sync document are
// scanned through it once content is on disk; GitCheckout reads its tree
// through git instead (spec §4.6).
type LocalDir struct {
	Root string
}

func NewLocalDir(root string) *LocalDir { return &LocalDir{Root: root} }

func (l *LocalDir) Name() string { return "localdir" }

func (l *LocalDir) Scan() ([]kinds.Candidate, error) {
	info, err := os.Stat(l.Root)
	if err != nil {
		return nil, fmt.Errorf("source: stat %s: %w", l.Root, err)
	}
	if !info.IsDir() {
		c, err := scanFile(l.Root)
		if err != nil {
			return nil, err
		}
		return []kinds.Candidate{c}, nil
	}

	if isPluginDir(l.Root) {
		c, err := scanPluginDir(l.Root)
		if err != nil {
			return nil, err
		}
		return []kinds.Candidate{c}, nil
	}

	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("source: readdir %s: %w", l.Root, err)
	}
	var out []kinds.Candidate
	for _, e := range entries {
		path := filepath.Join(l.Root, e.Name())
		if e.IsDir() {
			if isPluginDir(path) {
				c, err := scanPluginDir(path)
				if err != nil {
					return nil, err
				}
				out = append(out, c)
			}
			continue
		}
		c, err := scanFile(path)
		if err != nil {
			return nil, err
		}
		if c.Kind == "" {
			continue // undetectable content is silently skipped by the adapter; validation reports it if forced through
		}
		out = append(out, c)
	}
	if err := checkDuplicateNames(out); err != nil {
		return nil, err
	}
	return out, nil
}

// DuplicateInSourceError reports two files within one source resolving
// to the same Kind/logical_name (spec §4.6: "duplicate logical_names
// within a single source produce DUPLICATE_IN_SOURCE before the pipeline
// runs").
type DuplicateInSourceError struct {
	Kind        kinds.Kind
	LogicalName string
	First       string
	Second      string
}

func (e *DuplicateInSourceError) Error() string {
	return fmt.Sprintf("source: DUPLICATE_IN_SOURCE: %s/%s found at both %s and %s",
		e.Kind, e.LogicalName, e.First, e.Second)
}

// checkDuplicateNames rejects a candidate set where two candidates of the
// same Kind share a logical_name — left unchecked, the second would
// silently clobber the first once keyed into a store.Patch.
func checkDuplicateNames(candidates []kinds.Candidate) error {
	seen := make(map[string]string, len(candidates))
	for _, c := range candidates {
		key := string(c.Kind) + "/" + c.LogicalName
		if first, ok := seen[key]; ok {
			return &DuplicateInSourceError{Kind: c.Kind, LogicalName: c.LogicalName, First: first, Second: c.SourcePath}
		}
		seen[key] = c.SourcePath
	}
	return nil
}

func isPluginDir(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, pluginManifestName))
	return err == nil
}

func scanFile(path string) (kinds.Candidate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return kinds.Candidate{}, fmt.Errorf("source: read %s: %w", path, err)
	}
	kind := validate.Detect(path, raw)
	name := logicalNameFor(path, kind, raw)
	return kinds.Candidate{
		SourcePath:  path,
		Kind:        kind,
		LogicalName: name,
		ContentHash: contentHash(raw),
		Body:        raw,
	}, nil
}

func scanPluginDir(dir string) (kinds.Candidate, error) {
	manifestPath := filepath.Join(dir, pluginManifestName)
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return kinds.Candidate{}, fmt.Errorf("source: read manifest %s: %w", manifestPath, err)
	}
	var manifest pluginManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return kinds.Candidate{}, fmt.Errorf("source: parse manifest %s: %w", manifestPath, err)
	}
	if manifest.Name == "" {
		manifest.Name = filepath.Base(dir)
	}

	var components []kinds.Candidate
	for _, rel := range manifest.Components {
		c, err := scanFile(filepath.Join(dir, rel))
		if err != nil {
			return kinds.Candidate{}, err
		}
		components = append(components, c)
	}

	return kinds.Candidate{
		SourcePath:      dir,
		Kind:            kinds.KindPlugin,
		LogicalName:     manifest.Name,
		DeclaredVersion: manifest.Version,
		ContentHash:     contentHash(raw),
		Body:            raw,
		Components:      components,
	}, nil
}

// logicalNameFor derives a Candidate's identity: a JSON document's own
// "name" field if structurally present, a Markdown front-matter "name",
// else the filename with its extension trimmed.
func logicalNameFor(path string, kind kinds.Kind, raw []byte) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch kind {
	case kinds.KindHook, kinds.KindMcpServer:
		var doc struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(raw, &doc) == nil && doc.Name != "" {
			return doc.Name
		}
	case kinds.KindAgent, kinds.KindCommand:
		if fm := validate.FrontMatterName(raw); fm != "" {
			return fm
		}
	}
	return base
}
