package validate

import (
	"github.com/roivaz/pacc/internal/kinds"
)

var agentKnownKeys = map[string]struct{}{
	"name": {}, "description": {}, "tools": {},
}

// AgentValidator validates a Markdown agent definition. Unlike Command,
// the metadata block is required here — name and description must both be
// present. Body content is never parsed (spec §4.2).
type AgentValidator struct{}

func NewAgentValidator() *AgentValidator { return &AgentValidator{} }

func (AgentValidator) CanHandle(c kinds.Candidate) bool { return c.Kind == kinds.KindAgent }

func (AgentValidator) Validate(c kinds.Candidate) kinds.ValidationReport {
	meta, _ := splitFrontMatter(c.Body)
	if meta == nil {
		return kinds.NewReport([]kinds.Issue{
			issue("SchemaViolation", c.SourcePath, "agent requires a leading metadata block with name and description"),
		}, nil)
	}

	var errs, warns []kinds.Issue
	name, _ := meta["name"].(string)
	desc, _ := meta["description"].(string)
	if name == "" {
		errs = append(errs, issue("SchemaViolation", c.SourcePath, "agent metadata.name is required"))
	}
	if desc == "" {
		errs = append(errs, issue("SchemaViolation", c.SourcePath, "agent metadata.description is required"))
	}
	for key := range meta {
		if _, known := agentKnownKeys[key]; !known {
			warns = append(warns, kinds.Issue{
				Code: "UNKNOWN_FIELD", Path: c.SourcePath,
				Message:  "unrecognized agent metadata key: " + key,
				Severity: kinds.SeverityWarning,
			})
		}
	}
	return kinds.NewReport(errs, warns)
}
