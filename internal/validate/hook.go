package validate

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/roivaz/pacc/internal/kinds"
)

var validEventTypes = map[string]struct{}{
	"PreToolUse": {}, "PostToolUse": {}, "Notification": {}, "Stop": {},
}

var validMatcherTypes = map[string]struct{}{
	"exact": {}, "regex": {}, "prefix": {}, "suffix": {}, "contains": {},
}

// dangerousCommandPatterns are substrings/sequences that warrant a
// DANGEROUS_COMMAND warning, not a hard failure (spec §4.2), unless the
// pipeline is running strict.
var dangerousCommandPatterns = []string{
	"rm -rf /",
	"rm -rf ~",
	":(){ :|:& };:",
	"mkfs",
	"dd if=",
	"> /dev/sda",
	"curl | sh",
	"curl | bash",
	"wget -O- |",
}

type hookMatcher struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern"`
}

type hookDoc struct {
	Name      string        `json:"name"`
	EventTypes []string     `json:"eventTypes"`
	Matchers  []hookMatcher `json:"matchers,omitempty"`
	Commands  []string      `json:"commands,omitempty"`
}

// HookValidator validates a Hook Candidate: required name/eventTypes,
// matcher type/pattern well-formedness, and a command blocklist scan that
// only escalates to an error in strict mode.
type HookValidator struct{}

func NewHookValidator() *HookValidator { return &HookValidator{} }

func (HookValidator) CanHandle(c kinds.Candidate) bool { return c.Kind == kinds.KindHook }

func (HookValidator) Validate(c kinds.Candidate) kinds.ValidationReport {
	var errs, warns []kinds.Issue

	var doc hookDoc
	if err := json.Unmarshal(c.Body, &doc); err != nil {
		return kinds.NewReport([]kinds.Issue{{
			Code: "SchemaViolation", Path: c.SourcePath,
			Message: "hook is not a well-formed JSON object: " + err.Error(),
			Severity: kinds.SeverityError,
		}}, nil)
	}

	if doc.Name == "" {
		errs = append(errs, issue("SchemaViolation", c.SourcePath, "hook.name is required"))
	}
	if len(doc.EventTypes) == 0 {
		errs = append(errs, issue("SchemaViolation", c.SourcePath, "hook.eventTypes must be non-empty"))
	}
	for _, et := range doc.EventTypes {
		if _, ok := validEventTypes[et]; !ok {
			errs = append(errs, issue("SchemaViolation", c.SourcePath, "unknown eventType: "+et))
		}
	}
	for _, m := range doc.Matchers {
		if _, ok := validMatcherTypes[m.Type]; !ok {
			errs = append(errs, issue("SchemaViolation", c.SourcePath, "unknown matcher type: "+m.Type))
			continue
		}
		if m.Type == "regex" {
			if _, err := regexp.Compile(m.Pattern); err != nil {
				errs = append(errs, issue("InvalidReference", c.SourcePath, "matcher regex does not compile: "+err.Error()))
			}
		}
	}
	for _, cmd := range doc.Commands {
		if d := matchDangerous(cmd); d != "" {
			warns = append(warns, kinds.Issue{
				Code: "DANGEROUS_COMMAND", Path: c.SourcePath,
				Message:  "command contains a blocklisted pattern: " + d,
				Severity: kinds.SeverityWarning,
			})
		}
	}

	return kinds.NewReport(errs, warns)
}

func matchDangerous(cmd string) string {
	lower := strings.ToLower(cmd)
	for _, p := range dangerousCommandPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

func issue(code, path, msg string) kinds.Issue {
	return kinds.Issue{Code: code, Path: path, Message: msg, Severity: kinds.SeverityError}
}
