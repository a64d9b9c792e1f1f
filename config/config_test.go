package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ROUNDTABLE_PROVIDER", "")
	os.Unsetenv("ROUNDTABLE_PROVIDER")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, s.Provider)
	assert.Equal(t, ":8080", s.ListenAddr)
	assert.Equal(t, 2*time.Second, s.HeartbeatInterval)
	assert.Equal(t, 8, s.MaxToolIterations)
	assert.Equal(t, 0.7, s.Temperature)
	assert.Equal(t, "roundtable.runs", s.NATSSubject)
}

func TestLoad_EnvironmentAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ROUNDTABLE_TEST_DOTENV_ONLY=1\nROUNDTABLE_MODEL=from-file\n"), 0o600))

	t.Setenv("ROUNDTABLE_PROVIDER", "mock")
	t.Setenv("ROUNDTABLE_MODEL", "from-env")
	t.Setenv("ROUNDTABLE_HEARTBEAT_INTERVAL", "500ms")
	t.Setenv("ROUNDTABLE_TEST_DOTENV_ONLY", "")
	os.Unsetenv("ROUNDTABLE_TEST_DOTENV_ONLY")

	s, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ProviderMock, s.Provider)
	assert.Equal(t, "from-env", s.Model)
	assert.Equal(t, 500*time.Millisecond, s.HeartbeatInterval)
	assert.Equal(t, "1", os.Getenv("ROUNDTABLE_TEST_DOTENV_ONLY"))

	m, err := s.NewModel()
	require.NoError(t, err)
	assert.Equal(t, "mock", m.Info().Provider)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ROUNDTABLE_PROVIDER", "llama")
	t.Setenv("ROUNDTABLE_MAX_TOOL_ITERATIONS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
	assert.Contains(t, err.Error(), "ROUNDTABLE_MAX_TOOL_ITERATIONS")
}

func TestNewModel_Providers(t *testing.T) {
	s := &Settings{Provider: "openai", OpenAIAPIKey: "x", Model: "gpt-x"}
	m, err := s.NewModel()
	require.NoError(t, err)
	assert.Equal(t, "gpt-x", m.Info().Name)

	s = &Settings{Provider: "anthropic", AnthropicAPIKey: "x"}
	m, err = s.NewModel()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Info().Provider)

	_, err = (&Settings{Provider: "nope"}).NewModel()
	assert.Error(t, err)
}
