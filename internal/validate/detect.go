package validate

import (
	"encoding/json"
	"strings"

	"github.com/roivaz/pacc/internal/kinds"
)

// Detect classifies content structurally rather than by file extension, per
// spec §4.2: JSON objects are inspected for telltale top-level fields;
// Markdown files are classified by the presence of a metadata block with
// name+description. Ambiguous content yields an empty Kind, which the
// pipeline turns into UndetectableKind rather than guessing.
func Detect(path string, content []byte) kinds.Kind {
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(content, &obj); err == nil {
			if _, ok := obj["mcpServers"]; ok {
				return kinds.KindMcpServer
			}
			if _, ok := obj["hooks"]; ok {
				return kinds.KindHook
			}
			if _, ok := obj["eventTypes"]; ok {
				return kinds.KindHook
			}
			if _, ok := obj["components"]; ok {
				return kinds.KindPlugin
			}
		}
		return ""
	}
	if strings.HasSuffix(strings.ToLower(path), ".md") || looksLikeMarkdown(trimmed) {
		meta, _ := splitFrontMatter(content)
		if meta != nil {
			_, hasName := meta["name"]
			_, hasDesc := meta["description"]
			if hasName && hasDesc {
				return kinds.KindAgent
			}
		}
		return kinds.KindCommand
	}
	return ""
}

func looksLikeMarkdown(trimmed string) bool {
	return strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "#")
}
