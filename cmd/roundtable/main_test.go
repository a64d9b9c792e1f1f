package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("ROUNDTABLE_PROVIDER", "mock")
	t.Setenv("ROUNDTABLE_LOG_LEVEL", "error")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))

	err := cmd.Execute()

	return out.String(), err
}

func TestTemplatesCommand(t *testing.T) {
	out, err := execute(t, "templates")
	require.NoError(t, err)

	assert.Contains(t, out, "[dialectical_mode]")
	assert.Contains(t, out, "[brainstorm_mode]")
	assert.Contains(t, out, "Supporter")
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
quick:
  name: Quick Take
  agents:
    - id: a
      name: Analyst
      user_prompt_template: "Topic: {topic}"
    - id: b
      name: Reviewer
      user_prompt_template: "Review: {a_message}"
  workflow:
    type: sequential
    rounds: 1
    steps:
      - agent: a
      - agent: b
        context: [a]
`), 0o600))

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ quick (Quick Take)")
	assert.Contains(t, out, "Messages: 2")
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broken:
  name: Broken
  agents:
    - id: a
      name: A
      user_prompt_template: "{topic}"
  workflow:
    type: sequential
    rounds: 0
    steps:
      - agent: ghost
`), 0o600))

	_, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--mode", "dialectical_mode", "--topic", "remote work", "--context", "title=Study")
	require.NoError(t, err)

	assert.Contains(t, out, "Dialectical Analysis - Discussion Report")
	assert.Contains(t, out, "📊 Report Generated Successfully")
}

func TestRunCommand_Stream(t *testing.T) {
	out, err := execute(t, "run", "-m", "brainstorm_mode", "-t", "city transport", "--stream")
	require.NoError(t, err)

	assert.Contains(t, out, "--- visionary (round 1) ---")
	assert.Contains(t, out, "--- integrator (round 3) ---")
	assert.Contains(t, out, "Discussion Report")
}

func TestRunCommand_UnknownMode(t *testing.T) {
	_, err := execute(t, "run", "--mode", "nope", "--topic", "x")
	assert.Error(t, err)
}

func TestRunCommand_SQLite(t *testing.T) {
	t.Setenv("ROUNDTABLE_DB_PATH", filepath.Join(t.TempDir(), "rt.db"))

	out, err := execute(t, "run", "--mode", "dialectical_mode", "--topic", "remote work")
	require.NoError(t, err)
	assert.Contains(t, out, "Discussion Report")
}
