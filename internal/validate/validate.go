// Package validate is the per-kind validation pipeline (spec §4.2). It
// reads Candidates and produces ValidationReports; it never writes.
package validate

import (
	"fmt"

	"github.com/roivaz/pacc/internal/kinds"
)

// Validator is the capability set a Kind-specific rule set must implement.
type Validator interface {
	CanHandle(c kinds.Candidate) bool
	Validate(c kinds.Candidate) kinds.ValidationReport
}

// Pipeline owns a registry of validators keyed by Kind and runs them
// against Candidates, optionally in strict mode (warnings promoted to
// errors).
type Pipeline struct {
	registry map[kinds.Kind]Validator
	strict   bool
}

// NewPipeline builds a Pipeline with PACC's five built-in validators
// registered. The registry is owned by this instance — there is no
// process-wide mutable validator table (spec §9).
func NewPipeline(strict bool) *Pipeline {
	p := &Pipeline{registry: make(map[kinds.Kind]Validator), strict: strict}
	p.Register(kinds.KindHook, NewHookValidator())
	p.Register(kinds.KindMcpServer, NewMcpServerValidator())
	p.Register(kinds.KindAgent, NewAgentValidator())
	p.Register(kinds.KindCommand, NewCommandValidator())
	p.Register(kinds.KindPlugin, NewPluginValidator(p))
	return p
}

// Register installs or replaces the validator for a Kind.
func (p *Pipeline) Register(k kinds.Kind, v Validator) {
	p.registry[k] = v
}

// Strict reports whether warnings are promoted to errors.
func (p *Pipeline) Strict() bool { return p.strict }

// Validate runs the registered validator for c.Kind, falling back to
// UndetectableKind if c.Kind is empty or unregistered.
func (p *Pipeline) Validate(c kinds.Candidate) kinds.ValidationReport {
	if !c.Kind.Valid() {
		return undetectable(c.SourcePath)
	}
	v, ok := p.registry[c.Kind]
	if !ok {
		return undetectable(c.SourcePath)
	}
	report := v.Validate(c)
	if p.strict {
		report.Promote()
	}
	return report
}

// ValidateAll runs Validate over every Candidate and returns the
// per-candidate reports keyed by logical name, plus whether every report
// is OK.
func (p *Pipeline) ValidateAll(candidates []kinds.Candidate) (map[string]kinds.ValidationReport, bool) {
	out := make(map[string]kinds.ValidationReport, len(candidates))
	ok := true
	for _, c := range candidates {
		r := p.Validate(c)
		out[c.LogicalName] = r
		if !r.OK {
			ok = false
		}
	}
	return out, ok
}

func undetectable(path string) kinds.ValidationReport {
	return kinds.NewReport([]kinds.Issue{{
		Code:     "UndetectableKind",
		Path:     path,
		Message:  fmt.Sprintf("could not classify %s into a known Kind", path),
		Severity: kinds.SeverityError,
	}}, nil)
}
