// Package parser loads workflow definitions from JSON and YAML files.
//
// Both formats decode through a common generic form so they share the same
// aliasing rules: recorders export the action list under either `actions` or
// `steps`.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"argus/automation-engine/pkg/types"
)

// LoadFile reads a workflow definition from a file, choosing the format by
// extension (.json, .yaml, .yml).
func LoadFile(path string) (*types.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewParseError(path, "failed to read file", err)
	}

	var workflow *types.Workflow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		workflow, err = ParseJSON(data)
	case ".yaml", ".yml":
		workflow, err = ParseYAML(data)
	default:
		return nil, NewParseError(path, fmt.Sprintf("unsupported extension %q", filepath.Ext(path)), nil)
	}
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return workflow, nil
}

// ParseJSON parses a workflow definition from JSON bytes.
func ParseJSON(data []byte) (*types.Workflow, error) {
	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, NewParseError("", "invalid JSON", err)
	}
	raw, ok := parsed.(map[string]any)
	if !ok {
		return nil, NewParseError("", "workflow definition must be an object", nil)
	}
	return fromGeneric(raw)
}

// ParseYAML parses a workflow definition from YAML bytes.
func ParseYAML(data []byte) (*types.Workflow, error) {
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, NewParseError("", "invalid YAML", err)
	}
	return fromGeneric(raw)
}

// fromGeneric converts the decoded generic form into a Workflow and
// validates it.
func fromGeneric(raw map[string]any) (*types.Workflow, error) {
	w := &types.Workflow{
		ID:          stringField(raw, "id"),
		Name:        stringField(raw, "name"),
		Description: stringField(raw, "description"),
	}

	actionList, ok := raw["actions"].([]any)
	if !ok {
		// Recorder exports use `steps` for the same list.
		actionList, _ = raw["steps"].([]any)
	}
	for i, item := range actionList {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, NewValidationError(fmt.Sprintf("actions[%d]", i), "action must be an object")
		}
		w.Actions = append(w.Actions, types.ActionSpecFromMap(m))
	}

	if m, ok := raw["metadata"].(map[string]any); ok {
		w.Metadata = m
	}
	if h := hookField(raw, "pre_hook"); h != nil {
		w.PreHook = h
	}
	if h := hookField(raw, "post_hook"); h != nil {
		w.PostHook = h
	}

	if err := Validate(w); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate enforces the structural requirements for a loadable workflow.
func Validate(w *types.Workflow) error {
	if w.ID == "" {
		return NewValidationError("id", "required field is missing")
	}
	if w.Name == "" {
		return NewValidationError("name", "required field is missing")
	}
	if len(w.Actions) == 0 {
		return NewValidationError("actions", "workflow must have at least one action")
	}
	for i, a := range w.Actions {
		if a.Type == "" {
			return NewValidationError(fmt.Sprintf("actions[%d].type", i), "required field is missing")
		}
	}
	return nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func hookField(raw map[string]any, key string) *types.Hook {
	m, ok := raw[key].(map[string]any)
	if !ok {
		return nil
	}
	h := &types.Hook{Type: stringField(m, "type")}
	if cfg, ok := m["config"].(map[string]any); ok {
		h.Config = cfg
	}
	return h
}
