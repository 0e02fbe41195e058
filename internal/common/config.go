package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/statement-agent/constants"
)

// DefaultConfigFile is read when no explicit config path is given and the file exists.
const DefaultConfigFile = "agent.yaml"

// Config holds all application configuration
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

// AgentConfig holds loop and filesystem layout configuration
type AgentConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	DataDir     string `yaml:"data_dir"`
	ParserDir   string `yaml:"parser_dir"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // "gemini" | "openai"
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Temperature     float32       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	LenientResponse bool          `yaml:"lenient_response"`
}

// EvaluatorConfig holds sandbox build/run configuration
type EvaluatorConfig struct {
	GoBinary         string        `yaml:"go_binary"`
	WorkDir          string        `yaml:"work_dir"`
	BuildTimeout     time.Duration `yaml:"build_timeout"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	NumericTolerance string        `yaml:"numeric_tolerance"`
	Pdftotext        string        `yaml:"pdftotext"`
}

// HistoryConfig holds attempt-history storage configuration
type HistoryConfig struct {
	DSN string `yaml:"dsn"` // empty disables history; "postgres://..." uses pgx, anything else sqlite
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	NoColor bool   `yaml:"no_color"`
}

// LLM providers understood by the CLI.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultConfig returns the configuration used when no file or env overrides exist.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxAttempts: constants.DefaultMaxAttempts,
			DataDir:     constants.DefaultDataDir,
			ParserDir:   constants.DefaultParserDir,
		},
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Temperature:     0.0,
			MaxTokens:       4000,
			Timeout:         90 * time.Second,
			LenientResponse: true,
		},
		Evaluator: EvaluatorConfig{
			GoBinary:         "go",
			BuildTimeout:     3 * time.Minute,
			RunTimeout:       30 * time.Second,
			NumericTolerance: "0",
			Pdftotext:        "pdftotext",
		},
		History: HistoryConfig{
			DSN: "file:agent_history.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig builds configuration from defaults, an optional YAML file, an optional .env
// file and finally environment variables. An empty path means DefaultConfigFile if present.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, NewAppError("CONFIG_ERROR", "read config file "+path, errors.Join(ErrInvalidInput, err))
		}
	}

	// .env is a convenience for local credentials; absence is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", errors.Join(ErrInvalidInput, err))
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Agent.MaxAttempts = getEnvAsInt("AGENT_MAX_ATTEMPTS", c.Agent.MaxAttempts)
	c.Agent.DataDir = getEnv("AGENT_DATA_DIR", c.Agent.DataDir)
	c.Agent.ParserDir = getEnv("AGENT_PARSER_DIR", c.Agent.ParserDir)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	switch c.LLM.Provider {
	case ProviderOpenAI:
		c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	default:
		c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
	}

	c.Evaluator.GoBinary = getEnv("GO_BINARY", c.Evaluator.GoBinary)
	c.Evaluator.BuildTimeout = getEnvAsDuration("EVAL_BUILD_TIMEOUT", c.Evaluator.BuildTimeout)
	c.Evaluator.RunTimeout = getEnvAsDuration("EVAL_RUN_TIMEOUT", c.Evaluator.RunTimeout)
	c.Evaluator.NumericTolerance = getEnv("EVAL_NUMERIC_TOLERANCE", c.Evaluator.NumericTolerance)

	c.History.DSN = getEnv("HISTORY_DSN", c.History.DSN)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Log.NoColor = true
	}
}

// Tolerance returns the parsed numeric tolerance for cell comparison.
func (c *Config) Tolerance() (decimal.Decimal, error) {
	s := strings.TrimSpace(c.Evaluator.NumericTolerance)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. Credentials are checked separately by
// ValidateLLM so that commands which never call a model can run without them.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("agent.data_dir", c.Agent.DataDir, Required).
		Field("agent.parser_dir", c.Agent.ParserDir, Required).
		Field("evaluator.go_binary", c.Evaluator.GoBinary, Required)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	if c.Agent.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "agent.max_attempts must be >= 1", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider), ErrInvalidInput)
	}
	tol, err := c.Tolerance()
	if err != nil {
		return NewAppError("CONFIG_ERROR", "evaluator.numeric_tolerance is not a decimal", errors.Join(ErrInvalidInput, err))
	}
	if tol.IsNegative() {
		return NewAppError("CONFIG_ERROR", "evaluator.numeric_tolerance must be >= 0", ErrInvalidInput)
	}
	return nil
}

// ValidateLLM checks the settings needed to call the configured provider.
func (c *Config) ValidateLLM() error {
	v := NewValidator().Field("llm.api_key", c.LLM.APIKey, Required)
	if v.HasErrors() {
		name := "GEMINI_API_KEY"
		if c.LLM.Provider == ProviderOpenAI {
			name = "OPENAI_API_KEY"
		}
		return NewAppError("CONFIG_ERROR", v.ErrorMessage()+" (set "+name+")", ErrInvalidInput)
	}
	return nil
}
