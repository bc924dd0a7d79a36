package source

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gitsight/go-vcsurl"

	"github.com/roivaz/pacc/internal/kinds"
	"github.com/roivaz/pacc/internal/validate"
)

// GitRef is the local-only git plumbing a GitCheckout adapter uses: read
// the tree at a ref and the remote URL already configured in an existing
// clone. It never clones, fetches or checks out — the engine's Non-goals
// exclude any adapter that performs network I/O (spec §4.6, §REDESIGN).
type GitRef struct {
	Path    string
	Ref     string
	Timeout time.Duration
}

func NewGitRef(path, ref string) *GitRef {
	return &GitRef{Path: path, Ref: ref, Timeout: 30 * time.Second}
}

func (g *GitRef) run(ctx context.Context, args ...string) (string, error) {
	c := exec.CommandContext(ctx, "git", args...)
	c.Dir = g.Path
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}

// HeadSHA returns the ref's resolved commit SHA.
func (g *GitRef) HeadSHA(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", g.Ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ListFiles returns repo-relative paths present at Ref.
func (g *GitRef) ListFiles(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "ls-tree", "-r", "--name-only", g.Ref)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ShowFile reads the blob at Ref:path.
func (g *GitRef) ShowFile(ctx context.Context, path string) ([]byte, error) {
	out, err := g.run(ctx, "show", fmt.Sprintf("%s:%s", g.Ref, path))
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// RemoteURL returns the URL configured for a remote (default "origin") in
// the existing local clone, without contacting the network.
func (g *GitRef) RemoteURL(ctx context.Context, remote string) (string, error) {
	if remote == "" {
		remote = "origin"
	}
	out, err := g.run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// OriginRef builds the opaque origin_ref metadata string stored verbatim
// on an InstalledRecord (spec §9): "<normalized-remote-url>@<ref>". The
// vcsurl parse only normalizes the host/path for display; PACC never
// re-parses this string as a branch, commit or tag.
func (g *GitRef) OriginRef(ctx context.Context, remote string) (string, error) {
	url, err := g.RemoteURL(ctx, remote)
	if err != nil {
		return "", err
	}
	if info, err := vcsurl.Parse(url); err == nil {
		return fmt.Sprintf("%s/%s@%s", info.Host, info.FullName, g.Ref), nil
	}
	return fmt.Sprintf("%s@%s", url, g.Ref), nil
}

// GitCheckout adapts an already-checked-out git worktree's tree at Ref
// into Candidates, the same way LocalDir does for a plain directory — git
// supplies the tree listing and blob reads, LocalDir-style detection and
// hashing still applies per file.
type GitCheckout struct {
	Ref *GitRef
}

func NewGitCheckout(ref *GitRef) *GitCheckout { return &GitCheckout{Ref: ref} }

func (g *GitCheckout) Name() string { return "git" }

func (g *GitCheckout) Scan() ([]kinds.Candidate, error) {
	ctx := context.Background()
	files, err := g.Ref.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	originRef, err := g.Ref.OriginRef(ctx, "")
	if err != nil {
		originRef = "" // detached or remote-less clones still scan; origin_ref is best-effort
	}

	var out []kinds.Candidate
	for _, path := range files {
		raw, err := g.Ref.ShowFile(ctx, path)
		if err != nil {
			return nil, err
		}
		kind := validate.Detect(path, raw)
		if kind == "" {
			continue
		}
		out = append(out, kinds.Candidate{
			SourcePath:  path,
			Kind:        kind,
			LogicalName: logicalNameFor(path, kind, raw),
			ContentHash: contentHash(raw),
			Body:        raw,
			Metadata:    map[string]any{"originRef": originRef},
		})
	}
	return out, nil
}
