package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leofalp/sleuth/providers/observability/slogobs"
)

func lookupFrom(values map[string]string) Option {
	return WithLookup(func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	})
}

func writeFile(testCase *testing.T, name, content string) string {
	testCase.Helper()
	path := filepath.Join(testCase.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		testCase.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(testCase *testing.T) {
	cfg, err := Load("", WithEnvFiles(), lookupFrom(nil))
	if err != nil {
		testCase.Fatal(err)
	}
	expected := Default()
	if *cfg != *expected {
		testCase.Errorf("expected defaults %+v, got %+v", expected, cfg)
	}
}

func TestLoad_File(testCase *testing.T) {
	path := writeFile(testCase, "sleuth.hcl", `
model       = "gpt-4o-mini"
temperature = 0.2
max_results = 5
search_backend = "brave"

completion {
  retries = 1
  timeout = "90s"
  log     = "verbose"
}

checkpoint {
  backend = "sqlite"
}

telemetry {
  backend         = "prometheus"
  log_format      = "PRETTY"
  log_level       = "debug"
  metrics_address = ":9464"
}
`)

	cfg, err := Load(path, WithEnvFiles(), lookupFrom(nil))
	if err != nil {
		testCase.Fatal(err)
	}

	if cfg.Model != "gpt-4o-mini" || cfg.Temperature != 0.2 || cfg.MaxResults != 5 {
		testCase.Errorf("unexpected model settings %+v", cfg)
	}
	if cfg.CompletionLog != "verbose" {
		testCase.Errorf("expected verbose completion logs, got %q", cfg.CompletionLog)
	}
	if cfg.SearchBackend != SearchBrave {
		testCase.Errorf("expected the brave backend, got %q", cfg.SearchBackend)
	}
	if cfg.CompletionRetries != 1 || cfg.CompletionTimeout != 90*time.Second {
		testCase.Errorf("unexpected completion settings %d %v", cfg.CompletionRetries, cfg.CompletionTimeout)
	}
	if cfg.CheckpointBackend != BackendSQLite || cfg.CheckpointDSN != "sleuth.db" {
		testCase.Errorf("expected sqlite with the default dsn, got %q %q", cfg.CheckpointBackend, cfg.CheckpointDSN)
	}
	if cfg.Telemetry != TelemetryPrometheus || cfg.LogFormat != slogobs.FormatPretty || cfg.LogLevel != "debug" || cfg.MetricsAddress != ":9464" {
		testCase.Errorf("unexpected telemetry settings %+v", cfg)
	}
}

func TestLoad_EnvironmentPrecedence(testCase *testing.T) {
	path := writeFile(testCase, "sleuth.hcl", `model = "from-file"
max_results = 4
`)
	envFile := writeFile(testCase, "test.env", `SLEUTH_MODEL=from-dotenv
SLEUTH_MAX_RESULTS=7
TAVILY_API_KEY=tvly-dotenv
OPENAI_API_KEY=sk-dotenv
BRAVE_SEARCH_API_KEY=brave-dotenv
`)

	cfg, err := Load(path, WithEnvFiles(envFile), lookupFrom(map[string]string{
		EnvModel:             "from-process",
		EnvOpenAIKey:         "",
		EnvCheckpointBackend: BackendPostgres,
		EnvCheckpointDSN:     "postgres://localhost/sleuth",
		EnvCompletionTimeout: "5s",
		EnvTemperature:       "1.5",
		EnvSearchBackend:     SearchBrave,
	}))
	if err != nil {
		testCase.Fatal(err)
	}

	if cfg.Model != "from-process" {
		testCase.Errorf("expected the process to win over .env and file, got %q", cfg.Model)
	}
	if cfg.MaxResults != 7 {
		testCase.Errorf("expected .env to win over the file, got %d", cfg.MaxResults)
	}
	if cfg.OpenAIAPIKey != "sk-dotenv" {
		testCase.Errorf("expected an empty process variable to fall through, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.SearchBackend != SearchBrave || cfg.BraveAPIKey != "brave-dotenv" {
		testCase.Errorf("unexpected search settings %q %q", cfg.SearchBackend, cfg.BraveAPIKey)
	}
	if cfg.TavilyAPIKey != "tvly-dotenv" {
		testCase.Errorf("unexpected tavily key %q", cfg.TavilyAPIKey)
	}
	if cfg.CheckpointBackend != BackendPostgres || cfg.CompletionTimeout != 5*time.Second || cfg.Temperature != 1.5 {
		testCase.Errorf("unexpected overrides %+v", cfg)
	}
	if _, set := os.LookupEnv(EnvTavilyKey); set && os.Getenv(EnvTavilyKey) == "tvly-dotenv" {
		testCase.Error(".env values must not leak into the process environment")
	}
}

func TestLoad_Errors(testCase *testing.T) {
	tests := []struct {
		name      string
		file      string
		env       map[string]string
		invalid   bool
		envFiles  []string
		wantError bool
	}{
		{name: "unknown backend", env: map[string]string{EnvCheckpointBackend: "redis"}, invalid: true},
		{name: "postgres without dsn", env: map[string]string{EnvCheckpointBackend: BackendPostgres}, invalid: true},
		{name: "unknown completion log", env: map[string]string{EnvCompletionLog: "chatty"}, invalid: true},
		{name: "unknown search backend", env: map[string]string{EnvSearchBackend: "bing"}, invalid: true},
		{name: "unknown telemetry", env: map[string]string{EnvTelemetry: "statsd"}, invalid: true},
		{name: "bad log format", env: map[string]string{EnvLogFormat: "xml"}, invalid: true},
		{name: "bad log level", env: map[string]string{EnvLogLevel: "loud"}, invalid: true},
		{name: "too many results", env: map[string]string{EnvMaxResults: "21"}, invalid: true},
		{name: "zero results", env: map[string]string{EnvMaxResults: "0"}, invalid: true},
		{name: "hot temperature", env: map[string]string{EnvTemperature: "2.5"}, invalid: true},
		{name: "negative retries", env: map[string]string{EnvCompletionRetries: "-1"}, invalid: true},
		{name: "empty model", file: `model = " "`, invalid: true},
		{name: "unparsable integer", env: map[string]string{EnvMaxResults: "three"}, wantError: true},
		{name: "unparsable duration", env: map[string]string{EnvCompletionTimeout: "soon"}, wantError: true},
		{name: "bad hcl", file: `model = `, wantError: true},
		{name: "unknown hcl attribute", file: `colour = "blue"`, wantError: true},
		{name: "bad hcl duration", file: "completion {\n  timeout = \"later\"\n}\n", wantError: true},
		{name: "missing env file", envFiles: []string{"/nonexistent/sleuth.env"}, wantError: true},
	}

	for _, test := range tests {
		testCase.Run(test.name, func(t *testing.T) {
			path := ""
			if test.file != "" {
				path = writeFile(testCase, "sleuth.hcl", test.file)
			}
			envFiles := test.envFiles
			if envFiles == nil {
				envFiles = []string{}
			}

			_, err := Load(path, WithEnvFiles(envFiles...), lookupFrom(test.env))
			if err == nil {
				t.Fatal("expected an error")
			}
			if test.invalid && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
			if !test.invalid && errors.Is(err, ErrInvalid) {
				t.Errorf("expected a load error, got a validation error %v", err)
			}
		})
	}
}
