// Package pathsafe is the kernel every other PACC component must route
// external-origin paths through before touching the filesystem (spec
// §4.1). Nothing downstream is trusted to have already done this — not
// even paths read back out of the structured-config store on a later run,
// since a tampered document must not be able to walk the engine out of its
// scope root.
package pathsafe

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxSymlinkDepth bounds symlink-chain resolution.
const DefaultMaxSymlinkDepth = 16

// Canonicalize resolves "." and ".." in userSupplied relative to root,
// follows symlinks up to maxDepth hops, and verifies the result is a
// descendant of root. maxDepth <= 0 uses DefaultMaxSymlinkDepth.
func Canonicalize(root, userSupplied string, maxDepth int) (string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSymlinkDepth
	}
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", newErr(NotFound, root, err)
	}
	joined := filepath.Join(absRoot, userSupplied)
	if !isWithin(absRoot, joined) {
		return "", newErr(Traversal, joined, nil)
	}
	resolved, err := resolveSymlinks(absRoot, joined, maxDepth, 0)
	if err != nil {
		return "", err
	}
	if !isWithin(absRoot, resolved) {
		return "", newErr(Traversal, resolved, nil)
	}
	return resolved, nil
}

// ValidateInstallPath enforces invariant 4 ("no install_path escapes
// scope_root after canonicalization") for a Candidate-declared path. Any
// containment failure — lexical or via a symlink — is reported as
// OutsideRoot, matching the orchestrator's planning-time contract.
func ValidateInstallPath(root, installPath string) (string, error) {
	resolved, err := Canonicalize(root, installPath, 0)
	if err != nil {
		if pe, ok := err.(*Error); ok {
			return "", newErr(OutsideRoot, pe.Path, pe.Err)
		}
		return "", err
	}
	return resolved, nil
}

// ScopedJoin concatenates segments onto root and re-canonicalizes the
// result. Absolute segments and any segment equal to ".." are rejected
// outright, before the join is even attempted.
func ScopedJoin(root string, segments ...string) (string, error) {
	for _, s := range segments {
		if filepath.IsAbs(s) {
			return "", newErr(Traversal, s, nil)
		}
		for _, part := range strings.Split(filepath.ToSlash(s), "/") {
			if part == ".." {
				return "", newErr(Traversal, s, nil)
			}
		}
	}
	rel := filepath.Join(segments...)
	return Canonicalize(root, rel, 0)
}

// RelativeWithin produces a normalized, root-relative path suitable for
// storage in an InstalledRecord.InstallPath. child must already be an
// absolute, canonicalized descendant of root (call Canonicalize first).
func RelativeWithin(root, child string) (string, error) {
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", newErr(NotFound, root, err)
	}
	if !isWithin(absRoot, child) {
		return "", newErr(OutsideRoot, child, nil)
	}
	rel, err := filepath.Rel(absRoot, child)
	if err != nil {
		return "", newErr(Traversal, child, err)
	}
	return filepath.ToSlash(rel), nil
}

// isWithin reports whether path is root itself or a lexical descendant of
// it. Both inputs must already be filepath.Clean-d absolute paths.
func isWithin(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// resolveSymlinks walks path's components relative to root, following
// symlinks as it goes, and returns the fully resolved absolute path.
// Missing intermediate (non-final) components are a NotFound error;
// a missing final component is tolerated so callers can canonicalize a
// not-yet-created destination.
func resolveSymlinks(root, path string, maxDepth, depth int) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", newErr(Traversal, path, err)
	}
	if rel == "." {
		return root, nil
	}
	comps := strings.Split(rel, string(filepath.Separator))
	current := root
	for i, c := range comps {
		if c == "" || c == "." {
			continue
		}
		if c == ".." {
			return "", newErr(Traversal, path, nil)
		}
		next := filepath.Join(current, c)
		info, err := os.Lstat(next)
		if err != nil {
			if os.IsNotExist(err) {
				if i != len(comps)-1 {
					return "", newErr(NotFound, next, err)
				}
				current = next
				continue
			}
			return "", newErr(NotFound, next, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			depth++
			if depth > maxDepth {
				return "", newErr(SymlinkLoop, next, nil)
			}
			target, rerr := os.Readlink(next)
			if rerr != nil {
				return "", newErr(NotFound, next, rerr)
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(next), target)
			}
			resolvedTarget, terr := resolveSymlinks(root, target, maxDepth, depth)
			if terr != nil {
				return "", terr
			}
			current = resolvedTarget
		} else {
			current = next
		}
	}
	return current, nil
}
