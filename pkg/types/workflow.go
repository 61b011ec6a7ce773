// Package types defines the core data structures for the automation engine.
package types

import (
	"encoding/json"
	"fmt"
)

// Workflow represents a recorded automation workflow definition.
//
// Workflows are treated as immutable input: the feedback loop produces
// adjusted copies and never mutates the original.
type Workflow struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Actions     []ActionSpec   `yaml:"actions" json:"actions"`
	PreHook     *Hook          `yaml:"pre_hook,omitempty" json:"pre_hook,omitempty"`
	PostHook    *Hook          `yaml:"post_hook,omitempty" json:"post_hook,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ActionSpec represents a single atomic step in a workflow: a type tag plus
// free-form parameters. On the wire the parameters sit at the top level of
// the action object, matching the recorder's export format.
type ActionSpec struct {
	ID     string
	Type   string
	Params map[string]any
}

// Hook represents an optional script hook attached to a workflow.
type Hook struct {
	Type   string         `yaml:"type" json:"type,omitempty"`
	Config map[string]any `yaml:"config" json:"config,omitempty"`
}

// UnmarshalJSON decodes an action from its flattened wire form.
func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.fromMap(raw)
	return nil
}

// MarshalJSON encodes an action back to its flattened wire form.
func (a ActionSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ToMap())
}

// UnmarshalYAML decodes an action from its flattened YAML form.
func (a *ActionSpec) UnmarshalYAML(unmarshal func(any) error) error {
	raw := make(map[string]any)
	if err := unmarshal(&raw); err != nil {
		return err
	}
	a.fromMap(raw)
	return nil
}

// MarshalYAML encodes an action back to its flattened YAML form.
func (a ActionSpec) MarshalYAML() (any, error) {
	return a.ToMap(), nil
}

// ActionSpecFromMap builds an action from its flattened map form.
func ActionSpecFromMap(raw map[string]any) ActionSpec {
	var a ActionSpec
	a.fromMap(raw)
	return a
}

func (a *ActionSpec) fromMap(raw map[string]any) {
	a.Params = make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case "id":
			if s, ok := v.(string); ok {
				a.ID = s
				continue
			}
		case "type":
			if s, ok := v.(string); ok {
				a.Type = s
				continue
			}
		}
		a.Params[k] = v
	}
}

// ToMap returns the action in its flattened map form. The returned map is a
// shallow merge; parameter values are shared with the action.
func (a ActionSpec) ToMap() map[string]any {
	out := make(map[string]any, len(a.Params)+2)
	for k, v := range a.Params {
		out[k] = v
	}
	if a.ID != "" {
		out["id"] = a.ID
	}
	out["type"] = a.Type
	return out
}

// Param returns the named parameter value.
func (a ActionSpec) Param(key string) (any, bool) {
	v, ok := a.Params[key]
	return v, ok
}

// ParamString returns a string parameter, or the default if absent.
func (a ActionSpec) ParamString(key, defaultVal string) string {
	if v, ok := a.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// ParamInt returns an integer parameter, or the default if absent.
// JSON numbers arrive as float64 and are accepted.
func (a ActionSpec) ParamInt(key string, defaultVal int) int {
	if v, ok := a.Params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// ParamFloat returns a float parameter, or the default if absent.
func (a ActionSpec) ParamFloat(key string, defaultVal float64) float64 {
	if v, ok := a.Params[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return defaultVal
}

// Clone returns a deep copy of the action.
func (a ActionSpec) Clone() ActionSpec {
	return ActionSpec{
		ID:     a.ID,
		Type:   a.Type,
		Params: deepCopyMap(a.Params),
	}
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := &Workflow{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Metadata:    deepCopyMap(w.Metadata),
	}
	if w.PreHook != nil {
		out.PreHook = &Hook{Type: w.PreHook.Type, Config: deepCopyMap(w.PreHook.Config)}
	}
	if w.PostHook != nil {
		out.PostHook = &Hook{Type: w.PostHook.Type, Config: deepCopyMap(w.PostHook.Config)}
	}
	if w.Actions != nil {
		out.Actions = make([]ActionSpec, len(w.Actions))
		for i, a := range w.Actions {
			out.Actions[i] = a.Clone()
		}
	}
	return out
}

// Validate checks the structural requirements for a queueable workflow.
func (w *Workflow) Validate() error {
	if w == nil {
		return fmt.Errorf("workflow is nil")
	}
	if w.ID == "" {
		return fmt.Errorf("workflow missing required field: id")
	}
	if w.Name == "" {
		return fmt.Errorf("workflow missing required field: name")
	}
	if len(w.Actions) == 0 {
		return fmt.Errorf("workflow must have at least one action")
	}
	return nil
}

// deepCopyMap deep-copies a JSON-like parameter map.
func deepCopyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
