package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/leofalp/sleuth/providers/ai/middleware"
	"github.com/leofalp/sleuth/providers/observability/slogobs"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Telemetry backends.
const (
	TelemetrySlog       = "slog"
	TelemetryOTel       = "otel"
	TelemetryPrometheus = "prometheus"
)

// CompletionLogOff disables the completion logging middleware.
const CompletionLogOff = "off"

// Search backends.
const (
	SearchTavily = "tavily"
	SearchBrave  = "brave"
)

// MaxSearchResults is the upper bound accepted by the search adapters.
const MaxSearchResults = 20

// DefaultEnvFile is read when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

// Environment variables read by Load.
const (
	EnvModel             = "SLEUTH_MODEL"
	EnvTemperature       = "SLEUTH_TEMPERATURE"
	EnvMaxResults        = "SLEUTH_MAX_RESULTS"
	EnvSearchBackend     = "SLEUTH_SEARCH_BACKEND"
	EnvCompletionRetries = "SLEUTH_COMPLETION_RETRIES"
	EnvCompletionTimeout = "SLEUTH_COMPLETION_TIMEOUT"
	EnvCheckpointBackend = "SLEUTH_CHECKPOINT_BACKEND"
	EnvCheckpointDSN     = "SLEUTH_CHECKPOINT_DSN"
	EnvTelemetry         = "SLEUTH_TELEMETRY"
	EnvLogFormat         = "SLEUTH_LOG_FORMAT"
	EnvLogLevel          = "SLEUTH_LOG_LEVEL"
	EnvMetricsAddress    = "SLEUTH_METRICS_ADDRESS"
	EnvCompletionLog     = "SLEUTH_COMPLETION_LOG"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "OPENAI_API_BASE_URL"
	EnvTavilyKey         = "TAVILY_API_KEY"
	EnvTavilyBaseURL     = "TAVILY_API_BASE_URL"
	EnvBraveKey          = "BRAVE_SEARCH_API_KEY"
	EnvBraveBaseURL      = "BRAVE_SEARCH_API_BASE_URL"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds the resolved settings.
type Config struct {
	Model       string
	Temperature float64
	// MaxResults is the number of documents fetched per query.
	MaxResults int
	// SearchBackend selects the retrieval provider: tavily or brave.
	SearchBackend string

	CompletionRetries int
	CompletionTimeout time.Duration
	// CompletionLog is off, minimal, standard or verbose.
	CompletionLog string

	CheckpointBackend string
	CheckpointDSN     string

	Telemetry      string
	LogFormat      slogobs.Format
	LogLevel       string
	MetricsAddress string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	TavilyAPIKey  string
	TavilyBaseURL string
	BraveAPIKey   string
	BraveBaseURL  string
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Model:             "gpt-4o",
		Temperature:       0,
		MaxResults:        3,
		SearchBackend:     SearchTavily,
		CompletionRetries: 3,
		CompletionTimeout: 2 * time.Minute,
		CompletionLog:     CompletionLogOff,
		CheckpointBackend: BackendMemory,
		Telemetry:         TelemetrySlog,
		LogFormat:         slogobs.FormatCompact,
		LogLevel:          "info",
	}
}

type options struct {
	envFiles []string
	lookup   func(string) (string, bool)
}

// Option customizes Load.
type Option func(*options)

// WithEnvFiles replaces the default .env file. Files named here must exist;
// no files disables .env loading.
func WithEnvFiles(files ...string) Option {
	return func(o *options) {
		o.envFiles = append([]string{}, files...)
	}
}

// WithLookup replaces os.LookupEnv as the source of process variables.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookup = lookup
	}
}

// Load resolves the configuration. An empty path skips the HCL file.
// Variables from .env files never modify the process environment.
func Load(path string, opts ...Option) (*Config, error) {
	o := &options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(o)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	dotenv, err := readEnvFiles(o.envFiles)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if value, ok := o.lookup(key); ok && value != "" {
			return value, true
		}
		value, ok := dotenv[key]
		return value, ok && value != ""
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if files == nil {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return map[string]string{}, nil
		}
		files = []string{DefaultEnvFile}
	}
	if len(files) == 0 {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("config: read env files %v: %w", files, err)
	}
	return values, nil
}

// Validate reports the first invalid setting, wrapped around ErrInvalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Model) == "" {
		return invalid("model must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return invalid("temperature %v outside [0, 2]", c.Temperature)
	}
	if c.MaxResults < 1 || c.MaxResults > MaxSearchResults {
		return invalid("max_results %d outside [1, %d]", c.MaxResults, MaxSearchResults)
	}
	switch c.SearchBackend {
	case SearchTavily, SearchBrave:
	default:
		return invalid("unknown search backend %q", c.SearchBackend)
	}
	if c.CompletionRetries < 0 {
		return invalid("completion retries must not be negative")
	}
	if c.CompletionTimeout < 0 {
		return invalid("completion timeout must not be negative")
	}
	if c.CompletionLog != CompletionLogOff {
		if _, err := middleware.ParseLogLevel(c.CompletionLog); err != nil {
			return invalid("completion log: %v", err)
		}
	}

	switch c.CheckpointBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.CheckpointDSN == "" {
			c.CheckpointDSN = "sleuth.db"
		}
	case BackendPostgres:
		if c.CheckpointDSN == "" {
			return invalid("checkpoint backend %q requires a dsn", c.CheckpointBackend)
		}
	default:
		return invalid("unknown checkpoint backend %q", c.CheckpointBackend)
	}

	switch c.Telemetry {
	case TelemetrySlog, TelemetryOTel, TelemetryPrometheus:
	default:
		return invalid("unknown telemetry backend %q", c.Telemetry)
	}

	format, err := slogobs.ParseFormat(string(c.LogFormat))
	if err != nil {
		return invalid("%v", err)
	}
	c.LogFormat = format
	if _, err := slogobs.ParseLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	return nil
}

type fileConfig struct {
	Model       *string          `hcl:"model,optional"`
	Temperature *float64         `hcl:"temperature,optional"`
	MaxResults  *int             `hcl:"max_results,optional"`
	Search      *string          `hcl:"search_backend,optional"`
	Completion  *completionBlock `hcl:"completion,block"`
	Checkpoint  *checkpointBlock `hcl:"checkpoint,block"`
	Telemetry   *telemetryBlock  `hcl:"telemetry,block"`
}

type completionBlock struct {
	Retries *int    `hcl:"retries,optional"`
	Timeout *string `hcl:"timeout,optional"`
	Log     *string `hcl:"log,optional"`
}

type checkpointBlock struct {
	Backend *string `hcl:"backend,optional"`
	DSN     *string `hcl:"dsn,optional"`
}

type telemetryBlock struct {
	Backend        *string `hcl:"backend,optional"`
	LogFormat      *string `hcl:"log_format,optional"`
	LogLevel       *string `hcl:"log_level,optional"`
	MetricsAddress *string `hcl:"metrics_address,optional"`
}

func (c *Config) applyFile(path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("config: parse %s: %s", path, diags.Error())
	}

	var decoded fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &decoded); diags.HasErrors() {
		return fmt.Errorf("config: decode %s: %s", path, diags.Error())
	}

	setString(&c.Model, decoded.Model)
	if decoded.Temperature != nil {
		c.Temperature = *decoded.Temperature
	}
	if decoded.MaxResults != nil {
		c.MaxResults = *decoded.MaxResults
	}
	setString(&c.SearchBackend, decoded.Search)
	if block := decoded.Completion; block != nil {
		if block.Retries != nil {
			c.CompletionRetries = *block.Retries
		}
		if block.Timeout != nil {
			timeout, err := time.ParseDuration(*block.Timeout)
			if err != nil {
				return fmt.Errorf("config: %s: completion timeout: %w", path, err)
			}
			c.CompletionTimeout = timeout
		}
		setString(&c.CompletionLog, block.Log)
	}
	if block := decoded.Checkpoint; block != nil {
		setString(&c.CheckpointBackend, block.Backend)
		setString(&c.CheckpointDSN, block.DSN)
	}
	if block := decoded.Telemetry; block != nil {
		setString(&c.Telemetry, block.Backend)
		if block.LogFormat != nil {
			c.LogFormat = slogobs.Format(*block.LogFormat)
		}
		setString(&c.LogLevel, block.LogLevel)
		setString(&c.MetricsAddress, block.MetricsAddress)
	}
	return nil
}

func setString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	textFields := map[string]*string{
		EnvModel:             &c.Model,
		EnvSearchBackend:     &c.SearchBackend,
		EnvCheckpointBackend: &c.CheckpointBackend,
		EnvCheckpointDSN:     &c.CheckpointDSN,
		EnvTelemetry:         &c.Telemetry,
		EnvLogLevel:          &c.LogLevel,
		EnvMetricsAddress:    &c.MetricsAddress,
		EnvCompletionLog:     &c.CompletionLog,
		EnvOpenAIKey:         &c.OpenAIAPIKey,
		EnvOpenAIBaseURL:     &c.OpenAIBaseURL,
		EnvTavilyKey:         &c.TavilyAPIKey,
		EnvTavilyBaseURL:     &c.TavilyBaseURL,
		EnvBraveKey:          &c.BraveAPIKey,
		EnvBraveBaseURL:      &c.BraveBaseURL,
	}
	for key, target := range textFields {
		if value, ok := lookup(key); ok {
			*target = value
		}
	}
	if value, ok := lookup(EnvLogFormat); ok {
		c.LogFormat = slogobs.Format(value)
	}

	if value, ok := lookup(EnvTemperature); ok {
		temperature, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvTemperature, err)
		}
		c.Temperature = temperature
	}
	for key, target := range map[string]*int{EnvMaxResults: &c.MaxResults, EnvCompletionRetries: &c.CompletionRetries} {
		if value, ok := lookup(key); ok {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*target = parsed
		}
	}
	if value, ok := lookup(EnvCompletionTimeout); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvCompletionTimeout, err)
		}
		c.CompletionTimeout = timeout
	}
	return nil
}
