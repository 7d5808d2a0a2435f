package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Queue       QueueConfig   `toml:"queue"`
	Storage     StorageConfig `toml:"storage"`
	Ingest      IngestConfig  `toml:"ingest"`
	Enrich      EnrichConfig  `toml:"enrich"`
	Claude      ClaudeConfig  `toml:"claude"`
	Gemini      GeminiConfig  `toml:"gemini"`
	LLM         LLMConfig     `toml:"llm"`
	Mailer      MailerConfig  `toml:"mailer"`
	IMAP        IMAPConfig    `toml:"imap"`
	Logging     LoggingConfig `toml:"logging"`

	// Portfolios seeded into the store at startup. Existing portfolios with
	// the same email are left untouched.
	Portfolios []PortfolioSeed `toml:"portfolios"`
}

// PortfolioSeed is one portfolio declared in the config file.
type PortfolioSeed struct {
	Email    string        `toml:"email"`
	Accounts []AccountSeed `toml:"accounts"`
}

// AccountSeed is one named symbol list within a seeded portfolio.
type AccountSeed struct {
	Name    string   `toml:"name"`
	Tickers []string `toml:"tickers"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before dead-letter
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// IngestConfig controls how newsletter emails enter the pipeline.
type IngestConfig struct {
	Schedule      string `toml:"schedule"`       // Cron schedule for the IMAP mailbox sweep
	SubjectFilter string `toml:"subject_filter"` // Optional IMAP subject filter for the sweep
	MarkSeen      bool   `toml:"mark_seen"`      // Mark fetched messages as read
}

// EnrichConfig controls the enrichment pipeline: batching, pacing, retries
// and the freshness window for queued tasks.
type EnrichConfig struct {
	Mode            string `toml:"mode"`              // "per_ticker" or "compiled"
	BatchSize       int    `toml:"batch_size"`        // Calls issued concurrently per batch
	BatchDelay      string `toml:"batch_delay"`       // Pause between batches, e.g. "3s"
	MaxRetries      int    `toml:"max_retries"`       // Max attempts per enrichment call
	RetryBackoff    string `toml:"retry_backoff"`     // Base backoff unit, scaled linearly by attempt
	MaxTaskAge      string `toml:"max_task_age"`      // Staleness window for queued tasks, e.g. "10s"
	RequestTimeout  string `toml:"request_timeout"`   // Per-call HTTP timeout
	MinConfidence   int    `toml:"min_confidence"`    // Stories below this confidence are logged, not dropped
	AttachPDF       bool   `toml:"attach_pdf"`        // Deliver the newsletter as a PDF attachment
	NewsletterTitle string `toml:"newsletter_title"`  // Masthead title on the rendered document
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider identifies which chat-completion backend to use
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

type LLMConfig struct {
	Provider LLMProvider `toml:"provider"` // "claude" or "gemini"
}

// MailerConfig holds SMTP settings for newsletter delivery
type MailerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	UseTLS   bool   `toml:"use_tls"`
}

// IMAPConfig holds mailbox credentials for the ingestion sweep
type IMAPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Mailbox  string `toml:"mailbox"`
	UseTLS   bool   `toml:"use_tls"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns the configuration defaults. Values mirror the
// behavior of the hosted deployment: single-digit batch sizes, a three second
// pause between enrichment batches and a ten second freshness window.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8082,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       3,
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			QueueName:         "foliomail_tasks",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/foliomail",
				ResetOnStartup: false,
			},
		},
		Ingest: IngestConfig{
			Schedule: "0 7 * * *", // Daily sweep before market open
			MarkSeen: true,
		},
		Enrich: EnrichConfig{
			Mode:            "per_ticker",
			BatchSize:       5,
			BatchDelay:      "3s",
			MaxRetries:      5,
			RetryBackoff:    "2s",
			MaxTaskAge:      "10s",
			RequestTimeout:  "2m",
			MinConfidence:   0,
			AttachPDF:       true,
			NewsletterTitle: "Folio Diligence",
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "5m",
			Temperature: 0,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-2.0-flash",
			Timeout:     "5m",
			Temperature: 0,
		},
		LLM: LLMConfig{
			Provider: LLMProviderClaude,
		},
		Mailer: MailerConfig{
			Port:     587,
			FromName: "Foliomail",
			UseTLS:   true,
		},
		IMAP: IMAPConfig{
			Port:    993,
			Mailbox: "INBOX",
			UseTLS:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIOMAIL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("FOLIOMAIL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FOLIOMAIL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if pollInterval := os.Getenv("FOLIOMAIL_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("FOLIOMAIL_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("FOLIOMAIL_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("FOLIOMAIL_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("FOLIOMAIL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Enrichment configuration
	if mode := os.Getenv("FOLIOMAIL_ENRICH_MODE"); mode != "" {
		config.Enrich.Mode = mode
	}
	if batchSize := os.Getenv("FOLIOMAIL_ENRICH_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil {
			config.Enrich.BatchSize = bs
		}
	}
	if batchDelay := os.Getenv("FOLIOMAIL_ENRICH_BATCH_DELAY"); batchDelay != "" {
		config.Enrich.BatchDelay = batchDelay
	}
	if maxRetries := os.Getenv("FOLIOMAIL_ENRICH_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Enrich.MaxRetries = mr
		}
	}
	if maxTaskAge := os.Getenv("FOLIOMAIL_ENRICH_MAX_TASK_AGE"); maxTaskAge != "" {
		config.Enrich.MaxTaskAge = maxTaskAge
	}

	// LLM credentials
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("FOLIOMAIL_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if provider := os.Getenv("FOLIOMAIL_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = LLMProvider(provider)
	}

	// Mail transport credentials
	if host := os.Getenv("FOLIOMAIL_SMTP_HOST"); host != "" {
		config.Mailer.Host = host
	}
	if port := os.Getenv("FOLIOMAIL_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Mailer.Port = p
		}
	}
	if user := os.Getenv("FOLIOMAIL_SMTP_USERNAME"); user != "" {
		config.Mailer.Username = user
	}
	if pass := os.Getenv("FOLIOMAIL_SMTP_PASSWORD"); pass != "" {
		config.Mailer.Password = pass
	}
	if from := os.Getenv("FOLIOMAIL_SMTP_FROM"); from != "" {
		config.Mailer.From = from
	}

	// IMAP mailbox credentials
	if host := os.Getenv("FOLIOMAIL_IMAP_HOST"); host != "" {
		config.IMAP.Host = host
	}
	if user := os.Getenv("FOLIOMAIL_IMAP_USERNAME"); user != "" {
		config.IMAP.Username = user
	}
	if pass := os.Getenv("FOLIOMAIL_IMAP_PASSWORD"); pass != "" {
		config.IMAP.Password = pass
	}

	// Logging configuration
	if level := os.Getenv("FOLIOMAIL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FOLIOMAIL_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// PollIntervalDuration parses the queue poll interval, falling back to 1s.
func (q *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(q.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// VisibilityTimeoutDuration parses the visibility timeout, falling back to 5m.
func (q *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(q.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// BatchDelayDuration parses the inter-batch delay, falling back to 3s.
func (e *EnrichConfig) BatchDelayDuration() time.Duration {
	d, err := time.ParseDuration(e.BatchDelay)
	if err != nil || d < 0 {
		return 3 * time.Second
	}
	return d
}

// RetryBackoffDuration parses the retry backoff unit, falling back to 2s.
func (e *EnrichConfig) RetryBackoffDuration() time.Duration {
	d, err := time.ParseDuration(e.RetryBackoff)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// MaxTaskAgeDuration parses the staleness window, falling back to 10s.
func (e *EnrichConfig) MaxTaskAgeDuration() time.Duration {
	d, err := time.ParseDuration(e.MaxTaskAge)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Validate checks cross-field constraints that TOML parsing cannot express.
func (c *Config) Validate() error {
	if c.Enrich.Mode != "per_ticker" && c.Enrich.Mode != "compiled" {
		return fmt.Errorf("invalid enrich mode '%s': must be 'per_ticker' or 'compiled'", c.Enrich.Mode)
	}
	if c.Enrich.BatchSize <= 0 {
		return fmt.Errorf("enrich batch_size must be positive, got %d", c.Enrich.BatchSize)
	}
	if c.Enrich.MaxRetries <= 0 {
		return fmt.Errorf("enrich max_retries must be positive, got %d", c.Enrich.MaxRetries)
	}
	switch c.LLM.Provider {
	case LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid llm provider '%s': must be 'claude' or 'gemini'", c.LLM.Provider)
	}
	return nil
}
