package validate

import (
	"path/filepath"
	"strings"

	"github.com/roivaz/pacc/internal/kinds"
	"github.com/roivaz/pacc/internal/pathsafe"
)

// CommandValidator validates a Markdown slash command. The metadata block
// is optional — this is a historical asymmetry with Agent, preserved
// deliberately rather than "fixed" (spec §4.2, §9). When present, a name
// key overrides the filename-derived name.
type CommandValidator struct{}

func NewCommandValidator() *CommandValidator { return &CommandValidator{} }

func (CommandValidator) CanHandle(c kinds.Candidate) bool { return c.Kind == kinds.KindCommand }

func (CommandValidator) Validate(c kinds.Candidate) kinds.ValidationReport {
	meta, _ := splitFrontMatter(c.Body)

	name := strings.TrimSuffix(filepath.Base(c.SourcePath), filepath.Ext(c.SourcePath))
	if meta != nil {
		if override, ok := meta["name"].(string); ok && override != "" {
			name = override
		}
	}

	var errs []kinds.Issue
	if err := pathsafe.ValidateName(kinds.KindCommand, name); err != nil {
		errs = append(errs, issue("SchemaViolation", c.SourcePath, "reserved or invalid command name: "+name))
	}
	return kinds.NewReport(errs, nil)
}
