package validate

import (
	"github.com/roivaz/pacc/internal/kinds"
)

// PluginValidator validates a Plugin Candidate: its manifest must name at
// least one component, components must not collide on (kind, name), and
// each component is re-validated under its own Kind via the owning
// Pipeline (spec §4.2).
type PluginValidator struct {
	pipeline *Pipeline
}

func NewPluginValidator(p *Pipeline) *PluginValidator {
	return &PluginValidator{pipeline: p}
}

func (PluginValidator) CanHandle(c kinds.Candidate) bool { return c.Kind == kinds.KindPlugin }

func (v *PluginValidator) Validate(c kinds.Candidate) kinds.ValidationReport {
	if len(c.Components) == 0 {
		return kinds.NewReport([]kinds.Issue{
			issue("SchemaViolation", c.SourcePath, "plugin manifest names no components"),
		}, nil)
	}

	report := kinds.NewReport(nil, nil)
	seen := make(map[kinds.Key]struct{}, len(c.Components))
	for _, comp := range c.Components {
		key := kinds.Key{Kind: comp.Kind, LogicalName: comp.LogicalName}
		if _, dup := seen[key]; dup {
			report.Errors = append(report.Errors, issue("SchemaViolation", comp.SourcePath,
				"duplicate component in plugin manifest: "+string(comp.Kind)+"/"+comp.LogicalName))
			report.OK = false
			continue
		}
		seen[key] = struct{}{}

		compReport := v.pipeline.Validate(comp)
		report.Merge(compReport)
	}
	return report
}
