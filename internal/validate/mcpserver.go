package validate

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/roivaz/pacc/internal/kinds"
)

type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout int               `json:"timeout,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
}

type mcpServerDoc struct {
	McpServers map[string]mcpServerEntry `json:"mcpServers"`
}

// McpServerValidator validates the top-level "mcpServers" mapping shape.
// A missing binary is a warning, not an error — the binary may be
// installed later (spec §4.2).
type McpServerValidator struct{}

func NewMcpServerValidator() *McpServerValidator { return &McpServerValidator{} }

func (McpServerValidator) CanHandle(c kinds.Candidate) bool { return c.Kind == kinds.KindMcpServer }

func (McpServerValidator) Validate(c kinds.Candidate) kinds.ValidationReport {
	var doc mcpServerDoc
	if err := json.Unmarshal(c.Body, &doc); err != nil {
		return kinds.NewReport([]kinds.Issue{{
			Code: "SchemaViolation", Path: c.SourcePath,
			Message:  "mcpServers document is not well-formed JSON: " + err.Error(),
			Severity: kinds.SeverityError,
		}}, nil)
	}
	if len(doc.McpServers) == 0 {
		return kinds.NewReport([]kinds.Issue{
			issue("SchemaViolation", c.SourcePath, "mcpServers must contain at least one server entry"),
		}, nil)
	}

	var errs, warns []kinds.Issue
	for name, entry := range doc.McpServers {
		if entry.Command == "" {
			errs = append(errs, issue("SchemaViolation", c.SourcePath, "mcpServers."+name+".command is required"))
			continue
		}
		if entry.Timeout < 0 {
			errs = append(errs, issue("SchemaViolation", c.SourcePath, "mcpServers."+name+".timeout must be positive"))
		}
		if filepath.IsAbs(entry.Command) {
			if _, err := os.Stat(entry.Command); err != nil {
				warns = append(warns, kinds.Issue{
					Code: "UNKNOWN_FIELD", Path: c.SourcePath,
					Message:  "mcpServers." + name + ".command does not exist yet: " + entry.Command,
					Severity: kinds.SeverityWarning,
				})
			}
		} else if _, err := exec.LookPath(entry.Command); err != nil {
			warns = append(warns, kinds.Issue{
				Code: "UNKNOWN_FIELD", Path: c.SourcePath,
				Message:  "mcpServers." + name + ".command not currently on PATH: " + entry.Command,
				Severity: kinds.SeverityWarning,
			})
		}
	}
	return kinds.NewReport(errs, warns)
}
