package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ConflictError reports a scalar merge conflict under Strategy Fail.
type ConflictError struct {
	Kind string
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: merge conflict on %s/%s", e.Kind, e.Name)
}

// Merge applies patch to current under strategy. Kind-mapped fields
// (hooks/mcpServers/agents/commands) dedupe by their map key, which is
// already the Kind-specific identity function (logical_name). Each entry
// is merged as a whole value: the same key present in both with different
// normalized JSON is a conflict resolved per strategy, and the fields
// inside an entry are not merged one by one. enabledPlugins dedupes by
// full string identity, keeping first-seen order (spec §4.3's "merge is
// associative up to dedup order and idempotent").
func Merge(current Documents, patch Patch, strategy Strategy) (Documents, error) {
	next := Documents{
		Prefs: Prefs{
			Hooks:          cloneRaw(current.Prefs.Hooks),
			McpServers:     cloneRaw(current.Prefs.McpServers),
			Agents:         cloneRaw(current.Prefs.Agents),
			Commands:       cloneRaw(current.Prefs.Commands),
			EnabledPlugins: append([]string{}, current.Prefs.EnabledPlugins...),
		},
		State: State{
			Hooks:      cloneState(current.State.Hooks),
			McpServers: cloneState(current.State.McpServers),
			Agents:     cloneState(current.State.Agents),
			Commands:   cloneState(current.State.Commands),
		},
		Hashes: Hashes{
			Hooks:      cloneStr(current.Hashes.Hooks),
			McpServers: cloneStr(current.Hashes.McpServers),
			Agents:     cloneStr(current.Hashes.Agents),
			Commands:   cloneStr(current.Hashes.Commands),
		},
	}

	if err := mergeKind(next.Prefs.Hooks, patch.UpsertHooks, "hooks", strategy); err != nil {
		return Documents{}, err
	}
	if err := mergeKind(next.Prefs.McpServers, patch.UpsertMcpServers, "mcpServers", strategy); err != nil {
		return Documents{}, err
	}
	if err := mergeKind(next.Prefs.Agents, patch.UpsertAgents, "agents", strategy); err != nil {
		return Documents{}, err
	}
	if err := mergeKind(next.Prefs.Commands, patch.UpsertCommands, "commands", strategy); err != nil {
		return Documents{}, err
	}

	for _, name := range patch.RemoveHooks {
		delete(next.Prefs.Hooks, name)
	}
	for _, name := range patch.RemoveMcpServers {
		delete(next.Prefs.McpServers, name)
	}
	for _, name := range patch.RemoveAgents {
		delete(next.Prefs.Agents, name)
	}
	for _, name := range patch.RemoveCommands {
		delete(next.Prefs.Commands, name)
	}

	next.Prefs.EnabledPlugins = dedupePlugins(next.Prefs.EnabledPlugins, patch.EnabledPluginsAdd, patch.EnabledPluginsRemove)

	for key, rec := range patch.StateUpserts {
		stateMapFor(&next.State, key.Kind)[key.Name] = rec
	}
	for key, hash := range patch.HashUpserts {
		hashMapFor(&next.Hashes, key.Kind)[key.Name] = hash
	}
	for _, key := range patch.StateRemoves {
		delete(stateMapFor(&next.State, key.Kind), key.Name)
		delete(hashMapFor(&next.Hashes, key.Kind), key.Name)
	}

	return next, nil
}

func mergeKind(dst map[string]json.RawMessage, incoming map[string]json.RawMessage, kindName string, strategy Strategy) error {
	for name, value := range incoming {
		existing, present := dst[name]
		if !present || bytes.Equal(normalizeJSON(existing), normalizeJSON(value)) {
			dst[name] = value
			continue
		}
		switch strategy {
		case PreferIncoming:
			dst[name] = value
		case PreferExisting:
			// keep dst[name] as-is
		case Fail:
			return &ConflictError{Kind: kindName, Name: name}
		default:
			return fmt.Errorf("store: unknown merge strategy %q", strategy)
		}
	}
	return nil
}

// normalizeJSON strips insignificant whitespace so two differently
// formatted encodings of the same value compare equal.
func normalizeJSON(raw json.RawMessage) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return b
}

// dedupePlugins applies add/remove against the existing enabledPlugins
// list, deduping by full string identity (spec §4.3) while preserving
// first-seen order.
func dedupePlugins(current []string, add, remove []string) []string {
	removeSet := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		removeSet[r] = struct{}{}
	}
	seen := make(map[string]struct{}, len(current)+len(add))
	out := make([]string, 0, len(current)+len(add))
	for _, entry := range append(append([]string{}, current...), add...) {
		if _, skip := removeSet[entry]; skip {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out
}

// EnabledPluginEntries reads the enabledPlugins array straight off a
// preferences.json byte image via gjson — used by callers that only need
// a quick membership check without unmarshalling the whole document.
func EnabledPluginEntries(prefsJSON []byte) []string {
	result := gjson.GetBytes(prefsJSON, "enabledPlugins")
	if !result.IsArray() {
		return nil
	}
	var out []string
	result.ForEach(func(_, value gjson.Result) bool {
		out = append(out, value.String())
		return true
	})
	return out
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneState(m map[string]StateRecord) map[string]StateRecord {
	out := make(map[string]StateRecord, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStr(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stateMapFor(s *State, kind string) map[string]StateRecord {
	switch kind {
	case "hooks":
		return s.Hooks
	case "mcpServers":
		return s.McpServers
	case "agents":
		return s.Agents
	case "commands":
		return s.Commands
	default:
		return nil
	}
}

func hashMapFor(h *Hashes, kind string) map[string]string {
	switch kind {
	case "hooks":
		return h.Hooks
	case "mcpServers":
		return h.McpServers
	case "agents":
		return h.Agents
	case "commands":
		return h.Commands
	default:
		return nil
	}
}
