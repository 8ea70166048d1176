// Package config handles configuration for screenkit.
//
// Settings are layered: built-in defaults, then screenkit.yaml, then a .env
// file, then SCREENKIT_* environment variables. The result is validated
// before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/screenkit/pkg/core"
	"github.com/devicelab-dev/screenkit/pkg/logger"
	"github.com/devicelab-dev/screenkit/pkg/report"
	"github.com/devicelab-dev/screenkit/pkg/safety"
)

// Environment variables read by ApplyEnv.
const (
	EnvTimeoutMs      = "SCREENKIT_TIMEOUT_MS"
	EnvPollIntervalMs = "SCREENKIT_POLL_INTERVAL_MS"
	EnvRetryable      = "SCREENKIT_RETRYABLE"
	EnvResultsDir     = "SCREENKIT_RESULTS_DIR"
	EnvLogFile        = "SCREENKIT_LOG_FILE"
	EnvLogLevel       = "SCREENKIT_LOG_LEVEL"
)

// Config represents the workspace configuration (screenkit.yaml).
type Config struct {
	Retry   RetryConfig   `yaml:"retry"`
	Results ResultsConfig `yaml:"results"`
	Log     LogConfig     `yaml:"log"`
}

// RetryConfig is the default retry budget handed to page objects.
type RetryConfig struct {
	TimeoutMs      int      `yaml:"timeoutMs" validate:"gt=0"`
	PollIntervalMs int      `yaml:"pollIntervalMs" validate:"gte=0"`
	Retryable      []string `yaml:"retryable" validate:"dive,kind"` // failure kind names
}

// ResultsConfig controls where results are written.
type ResultsConfig struct {
	Dir         string            `yaml:"dir" validate:"required"`
	Environment map[string]string `yaml:"environment,omitempty"` // environment.properties entries
}

// LogConfig controls the file logger.
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn warning error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retryable := safety.DefaultRetryable()
	names := make([]string, len(retryable))
	for i, k := range retryable {
		names[i] = k.String()
	}
	return &Config{
		Retry: RetryConfig{
			TimeoutMs:      int(safety.DefaultTimeout / time.Millisecond),
			PollIntervalMs: int(safety.DefaultPollInterval / time.Millisecond),
			Retryable:      names,
		},
		Results: ResultsConfig{Dir: report.DefaultOutputDir},
		Log:     LogConfig{Level: "info"},
	}
}

// Load loads configuration from a file. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return cfg, nil
}

// LoadFromDir looks for screenkit.yaml or screenkit.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"screenkit.yaml", "screenkit.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use defaults
	return Default(), nil
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	logger.Debug("loaded environment from %s", path)
	return nil
}

// ApplyEnv overrides settings from SCREENKIT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTimeoutMs); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return core.ErrInvalidArgument.WithMessagef("%s=%q is not an integer", EnvTimeoutMs, v)
		}
		c.Retry.TimeoutMs = n
	}
	if v, ok := lookup(EnvPollIntervalMs); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return core.ErrInvalidArgument.WithMessagef("%s=%q is not an integer", EnvPollIntervalMs, v)
		}
		c.Retry.PollIntervalMs = n
	}
	if v, ok := lookup(EnvRetryable); ok {
		var names []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				names = append(names, part)
			}
		}
		c.Retry.Retryable = names
	}
	if v, ok := lookup(EnvResultsDir); ok {
		c.Results.Dir = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Log.File = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

// Resolve loads the configuration for dir: screenkit.yaml, then dir/.env,
// then the process environment. The result is validated.
func Resolve(dir string) (*Config, error) {
	cfg, err := LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		_, err := core.ParseKind(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks every setting and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.ErrInvalidArgument.WithCause(err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// drop the root struct name: Config.retry.timeoutMs -> retry.timeoutMs
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", field, fe.Tag(), fe.Value()))
	}
	return core.ErrInvalidArgument.WithMessage("invalid configuration: " + strings.Join(msgs, "; "))
}

// Safety returns the retry configuration described by c.
func (c *Config) Safety() (safety.Config, error) {
	kinds := make([]core.Kind, 0, len(c.Retry.Retryable))
	for _, name := range c.Retry.Retryable {
		k, err := core.ParseKind(name)
		if err != nil {
			return safety.Config{}, core.ErrInvalidArgument.WithCause(err)
		}
		kinds = append(kinds, k)
	}
	if c.Retry.TimeoutMs <= 0 {
		return safety.Config{}, core.ErrInvalidArgument.WithMessagef("retry.timeoutMs must be positive, got %d", c.Retry.TimeoutMs)
	}
	return safety.Config{
		Timeout:      time.Duration(c.Retry.TimeoutMs) * time.Millisecond,
		PollInterval: time.Duration(c.Retry.PollIntervalMs) * time.Millisecond,
		Retryable:    kinds,
	}, nil
}

// Writer returns a result writer for the configured directory.
func (c *Config) Writer() *report.Writer {
	return report.NewWriter(c.Results.Dir)
}

// InitLogging opens the configured log file and applies the level. Without
// a log file, logging stays disabled.
func (c *Config) InitLogging() error {
	if c.Log.File == "" {
		return nil
	}
	if err := logger.Init(c.Log.File); err != nil {
		return err
	}
	if c.Log.Level != "" {
		return logger.SetLevel(c.Log.Level)
	}
	return nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
