package pathsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roivaz/pacc/internal/kinds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	_, err := Canonicalize(root, "../../../etc/passwd", 0)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, Traversal, pe.Code)
}

func TestCanonicalizeAllowsDescendant(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "hooks"), 0o755))
	got, err := Canonicalize(root, "hooks/fmt.json", 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "hooks", "fmt.json"), got)
}

func TestCanonicalizeDetectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))
	_, err := Canonicalize(root, "escape/anything", 0)
	require.Error(t, err)
}

func TestValidateInstallPathReturnsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	_, err := ValidateInstallPath(root, "../../../etc/passwd")
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, OutsideRoot, pe.Code)
}

func TestScopedJoinRejectsDotDotSegment(t *testing.T) {
	root := t.TempDir()
	_, err := ScopedJoin(root, "hooks", "..", "..", "etc")
	require.Error(t, err)
}

func TestRelativeWithin(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "agents", "reviewer.md")
	rel, err := RelativeWithin(root, child)
	require.NoError(t, err)
	assert.Equal(t, "agents/reviewer.md", rel)
}

func TestValidateNameRejectsLeadingDotAndReserved(t *testing.T) {
	require.Error(t, ValidateName(kinds.KindHook, ".hidden"))
	require.Error(t, ValidateName(kinds.KindHook, "-flag"))
	require.Error(t, ValidateName(kinds.KindCommand, "help"))
	require.Error(t, ValidateName(kinds.KindAgent, "CON"))
	require.NoError(t, ValidateName(kinds.KindHook, "fmt-on-save"))
}

func TestValidateNameRejectsTooLong(t *testing.T) {
	name := ""
	for i := 0; i < 65; i++ {
		name += "a"
	}
	require.Error(t, ValidateName(kinds.KindAgent, name))
}
