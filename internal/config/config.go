package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Config represents the docpipe configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source" toml:"source"`
	Install  InstallConfig  `yaml:"install" toml:"install"`
	Docs     DocsConfig     `yaml:"docs" toml:"docs"`
	Verify   VerifyConfig   `yaml:"verify" toml:"verify"`
	Retry    RetryConfig    `yaml:"retry" toml:"retry"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	History  HistoryConfig  `yaml:"history" toml:"history"`
	Notify   NotifyConfig   `yaml:"notify" toml:"notify"`
	Schedule ScheduleConfig `yaml:"schedule" toml:"schedule"`
	Watch    WatchConfig    `yaml:"watch" toml:"watch"`
}

// SourceConfig describes where the project source comes from and where it is checked out.
type SourceConfig struct {
	URL        string      `yaml:"url" toml:"url"`
	Branch     string      `yaml:"branch,omitempty" toml:"branch,omitempty"`
	Depth      int         `yaml:"depth,omitempty" toml:"depth,omitempty"`
	Path       string      `yaml:"path,omitempty" toml:"path,omitempty"` // checkout target; defaults to the repository name
	OnExisting string      `yaml:"on_existing,omitempty" toml:"on_existing,omitempty"`
	Ephemeral  bool        `yaml:"ephemeral,omitempty" toml:"ephemeral,omitempty"`
	Auth       *AuthConfig `yaml:"auth,omitempty" toml:"auth,omitempty"`
}

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Type     string `yaml:"type" toml:"type"` // "none", "ssh", "token", "basic"
	Username string `yaml:"username,omitempty" toml:"username,omitempty"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`
	Token    string `yaml:"token,omitempty" toml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty" toml:"key_path,omitempty"`
}

// InstallConfig controls the development-mode install and the doc tooling install.
type InstallConfig struct {
	Python    string   `yaml:"python" toml:"python"`
	Method    string   `yaml:"method" toml:"method"` // pip | setup.py
	Tooling   []string `yaml:"tooling" toml:"tooling"`
	IndexURL  string   `yaml:"index_url,omitempty" toml:"index_url,omitempty"`
	Upgrade   bool     `yaml:"upgrade,omitempty" toml:"upgrade,omitempty"`
	ExtraArgs []string `yaml:"extra_args,omitempty" toml:"extra_args,omitempty"`
}

// DocsConfig controls output directory preparation and generator invocation.
// SourceDir and OutputDir are relative to the source tree unless absolute.
type DocsConfig struct {
	SourceDir        string            `yaml:"source_dir" toml:"source_dir"`
	OutputDir        string            `yaml:"output_dir" toml:"output_dir"`
	OutputPolicy     string            `yaml:"output_policy" toml:"output_policy"` // merge | clean
	Generator        string            `yaml:"generator" toml:"generator"`         // sphinx | native
	Builder          string            `yaml:"builder" toml:"builder"`
	SphinxBuild      string            `yaml:"sphinx_build" toml:"sphinx_build"`
	Title            string            `yaml:"title,omitempty" toml:"title,omitempty"`
	Suffixes         []string          `yaml:"suffixes" toml:"suffixes"`
	WarningsAsErrors bool              `yaml:"warnings_as_errors,omitempty" toml:"warnings_as_errors,omitempty"`
	Jobs             int               `yaml:"jobs,omitempty" toml:"jobs,omitempty"`
	Quiet            bool              `yaml:"quiet,omitempty" toml:"quiet,omitempty"`
	FreshEnv         bool              `yaml:"fresh_env,omitempty" toml:"fresh_env,omitempty"`
	Defines          map[string]string `yaml:"defines,omitempty" toml:"defines,omitempty"`
	ExtraArgs        []string          `yaml:"extra_args,omitempty" toml:"extra_args,omitempty"`
}

// VerifyConfig controls the post-generation output check.
type VerifyConfig struct {
	Enabled    bool `yaml:"enabled" toml:"enabled"`
	Strict     bool `yaml:"strict,omitempty" toml:"strict,omitempty"`
	CheckLinks bool `yaml:"check_links" toml:"check_links"`
}

// RetryConfig enables backoff for transient fetch/install failures. Zero retries disables it.
type RetryConfig struct {
	MaxRetries int              `yaml:"max_retries" toml:"max_retries"`
	Backoff    RetryBackoffMode `yaml:"backoff,omitempty" toml:"backoff,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty" toml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty" toml:"max,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `yaml:"format,omitempty" toml:"format,omitempty"` // text | json
}

// MetricsConfig enables Prometheus textfile export after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" toml:"textfile,omitempty"`
}

// HistoryConfig enables the SQLite build history.
type HistoryConfig struct {
	Database string `yaml:"database,omitempty" toml:"database,omitempty"`
}

// NotifyConfig enables NATS build event publication.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty" toml:"subject,omitempty"`
}

// ScheduleConfig drives the daemon command.
type ScheduleConfig struct {
	Every time.Duration `yaml:"every,omitempty" toml:"every,omitempty"`
	Cron  string        `yaml:"cron,omitempty" toml:"cron,omitempty"`
}

// WatchConfig drives the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty"`
}

// Load loads configuration from the specified file. Files ending in .toml are
// decoded as TOML, everything else as YAML. ${VAR} references are expanded
// after .env files have been loaded.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return Parse(data, formatFor(configPath))
}

// Format identifies a configuration encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(configPath string) Format {
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes raw configuration bytes, applies defaults, and validates the result.
func Parse(data []byte, format Format) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Defaults()
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to decode TOML config").Fatal().Build()
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to decode YAML config").Fatal().Build()
		}
	}

	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SourceRoot returns the checkout directory for the project source.
func (c *Config) SourceRoot() string {
	if c.Source.Path != "" {
		return c.Source.Path
	}
	return DefaultTargetPath(c.Source.URL)
}

// DefaultTargetPath mirrors `git clone` naming: the last URL path element without ".git".
func DefaultTargetPath(repoURL string) string {
	u := strings.TrimRight(strings.TrimSpace(repoURL), "/")
	if u == "" {
		return ""
	}
	if i := strings.LastIndex(u, ":"); i >= 0 && !strings.Contains(u, "://") {
		u = u[i+1:] // scp-like git@host:org/repo.git
	}
	name := strings.TrimSuffix(path.Base(filepath.ToSlash(u)), ".git")
	if name == "." || name == "/" {
		return ""
	}
	return name
}
