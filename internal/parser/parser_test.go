package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonWorkflow = `{
  "id": "wf-login",
  "name": "Login flow",
  "description": "Recorded login sequence",
  "actions": [
    {"id": "a1", "type": "click", "x": 100, "y": 200},
    {"id": "a2", "type": "type_text", "text": "admin"}
  ],
  "metadata": {"recorded_by": "studio"}
}`

const yamlWorkflow = `
id: wf-export
name: Export report
steps:
  - type: browser_navigate
    url: https://example.com/reports
  - type: browser_click
    selector: "#export"
pre_hook:
  type: script
  config:
    script: "log('starting'); true"
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_JSON(t *testing.T) {
	workflow, err := LoadFile(writeTemp(t, "wf.json", jsonWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "wf-login", workflow.ID)
	assert.Equal(t, "Login flow", workflow.Name)
	require.Len(t, workflow.Actions, 2)

	first := workflow.Actions[0]
	assert.Equal(t, "a1", first.ID)
	assert.Equal(t, "click", first.Type)
	assert.Equal(t, 100, first.ParamInt("x", 0))
	assert.Equal(t, 200, first.ParamInt("y", 0))
	// id and type are not duplicated into params.
	assert.NotContains(t, first.Params, "type")
	assert.NotContains(t, first.Params, "id")

	assert.Equal(t, "admin", workflow.Actions[1].ParamString("text", ""))
	assert.Equal(t, "studio", workflow.Metadata["recorded_by"])
}

func TestLoadFile_YAMLWithStepsAlias(t *testing.T) {
	workflow, err := LoadFile(writeTemp(t, "wf.yaml", yamlWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "wf-export", workflow.ID)
	require.Len(t, workflow.Actions, 2)
	assert.Equal(t, "browser_navigate", workflow.Actions[0].Type)
	assert.Equal(t, "https://example.com/reports", workflow.Actions[0].ParamString("url", ""))
	assert.Equal(t, "#export", workflow.Actions[1].ParamString("selector", ""))

	require.NotNil(t, workflow.PreHook)
	assert.Equal(t, "script", workflow.PreHook.Type)
	assert.Contains(t, workflow.PreHook.Config["script"], "log")
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile(writeTemp(t, "wf.txt", jsonWorkflow))
	require.Error(t, err)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile("/nonexistent/wf.json")
	require.Error(t, err)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "/nonexistent/wf.json", parseErr.Path)
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := ParseJSON([]byte("{not json"))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)
}

func TestParse_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing id", `{"name": "x", "actions": [{"type": "click"}]}`},
		{"missing name", `{"id": "x", "actions": [{"type": "click"}]}`},
		{"no actions", `{"id": "x", "name": "x", "actions": []}`},
		{"action without type", `{"id": "x", "name": "x", "actions": [{"x": 1}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tc.body))
			require.Error(t, err)
			var validationErr *ValidationError
			assert.True(t, errors.As(err, &validationErr))
		})
	}
}

func TestParseYAML_ActionsKeyPreferredOverSteps(t *testing.T) {
	workflow, err := ParseYAML([]byte(`
id: wf
name: both keys
actions:
  - type: click
    x: 1
    y: 2
steps:
  - type: ignored
`))
	require.NoError(t, err)
	require.Len(t, workflow.Actions, 1)
	assert.Equal(t, "click", workflow.Actions[0].Type)
}
