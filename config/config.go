// Package config loads process settings for the CLI and HTTP server from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/model/anthropic"
	"github.com/hupe1980/roundtable/model/openai"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Settings are the process level knobs. Library packages never read them
// directly; callers translate them into functional options.
type Settings struct {
	Provider        string  `env:"ROUNDTABLE_PROVIDER" envDefault:"openai"`
	Model           string  `env:"ROUNDTABLE_MODEL"`
	BaseURL         string  `env:"ROUNDTABLE_BASE_URL"`
	Temperature     float64 `env:"ROUNDTABLE_TEMPERATURE" envDefault:"0.7"`
	OpenAIAPIKey    string  `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string  `env:"ANTHROPIC_API_KEY"`
	TavilyAPIKey    string  `env:"TAVILY_API_KEY"`

	// ModesFile replaces the built-in catalog when set.
	ModesFile string `env:"ROUNDTABLE_MODES_FILE"`
	// DatabasePath selects the SQLite store; empty keeps everything in memory.
	DatabasePath string `env:"ROUNDTABLE_DB_PATH"`
	// NATSURL enables publishing run events to NATS when set.
	NATSURL     string `env:"ROUNDTABLE_NATS_URL"`
	NATSSubject string `env:"ROUNDTABLE_NATS_SUBJECT" envDefault:"roundtable.runs"`

	ListenAddr        string        `env:"ROUNDTABLE_LISTEN_ADDR" envDefault:":8080"`
	HeartbeatInterval time.Duration `env:"ROUNDTABLE_HEARTBEAT_INTERVAL" envDefault:"2s"`
	MaxToolIterations int           `env:"ROUNDTABLE_MAX_TOOL_ITERATIONS" envDefault:"8"`
	MaxParallelAgents int           `env:"ROUNDTABLE_MAX_PARALLEL_AGENTS" envDefault:"0"`

	LogLevel  string `env:"ROUNDTABLE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ROUNDTABLE_LOG_FORMAT" envDefault:"text"`
}

// Load reads the given .env files (missing files are ignored, already set
// variables win) and parses the environment into Settings.
func Load(envFiles ...string) (*Settings, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks value ranges and the provider name.
func (s *Settings) Validate() error {
	var errs []error

	switch strings.ToLower(s.Provider) {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("ROUNDTABLE_PROVIDER: unsupported provider %q", s.Provider))
	}
	if s.MaxToolIterations < 1 {
		errs = append(errs, fmt.Errorf("ROUNDTABLE_MAX_TOOL_ITERATIONS: must be >= 1"))
	}
	if s.MaxParallelAgents < 0 {
		errs = append(errs, fmt.Errorf("ROUNDTABLE_MAX_PARALLEL_AGENTS: must be >= 0"))
	}
	if s.HeartbeatInterval < 0 {
		errs = append(errs, fmt.Errorf("ROUNDTABLE_HEARTBEAT_INTERVAL: must be >= 0"))
	}

	return errors.Join(errs...)
}

// NewModel builds the configured model adapter.
func (s *Settings) NewModel() (model.Model, error) {
	switch strings.ToLower(s.Provider) {
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = s.OpenAIAPIKey
			o.BaseURL = s.BaseURL
			o.Temperature = s.Temperature
			if s.Model != "" {
				o.Model = s.Model
			}
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = s.AnthropicAPIKey
			o.Temperature = s.Temperature
			if s.Model != "" {
				o.Model = anthropicsdk.Model(s.Model)
			}
		}), nil
	case ProviderMock:
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", s.Provider)
	}
}

// NewLogger builds the process logger.
func (s *Settings) NewLogger() *logging.RoundtableLogger {
	return logging.NewSlogLogger(logging.ParseLevel(s.LogLevel), s.LogFormat, false)
}
