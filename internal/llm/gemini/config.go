package gemini

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// ProviderName identifies this client in errors and logs.
const ProviderName = "gemini"

// Config for the Gemini client.
type Config struct {
	APIKey      string // if empty, falls back to env GEMINI_API_KEY
	BaseURL     string // default https://generativelanguage.googleapis.com/v1beta
	Model       string // e.g., "gemini-2.0-flash"
	Temperature float32
	MaxTokens   int // maxOutputTokens; 0 leaves the provider default
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("provider", ProviderName),
	}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string { return c.cfg.Model }
