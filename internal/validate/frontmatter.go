package validate

import (
	"strings"

	"sigs.k8s.io/yaml"
)

// splitFrontMatter extracts a leading "---\n...\n---\n" metadata block from
// a Markdown file and parses it as YAML-in-JSON-clothing via sigs.k8s.io/yaml,
// so the same map type flows into the JSON-backed config store later. It
// returns (nil, body) when no front matter is present — the Command
// validator treats that as legal (spec §4.2, and see §9's documented
// asymmetry with Agent, which requires it).
func splitFrontMatter(content []byte) (map[string]any, string) {
	text := string(content)
	trimmed := strings.TrimLeft(text, "﻿ \t\r\n")
	if !strings.HasPrefix(trimmed, "---") {
		return nil, text
	}
	rest := trimmed[3:]
	end := strings.Index(rest, "\n---")
	if end == -1 {
		return nil, text
	}
	block := rest[:end]
	afterMarker := rest[end+4:]
	if nl := strings.IndexByte(afterMarker, '\n'); nl != -1 {
		afterMarker = afterMarker[nl+1:]
	} else {
		afterMarker = ""
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, text
	}
	return meta, afterMarker
}

// FrontMatterName extracts a Markdown document's front-matter "name" field,
// if present, for callers outside this package that need a Candidate's
// identity without running the full validator (source adapters).
func FrontMatterName(content []byte) string {
	meta, _ := splitFrontMatter(content)
	if meta == nil {
		return ""
	}
	if name, ok := meta["name"].(string); ok {
		return name
	}
	return ""
}
