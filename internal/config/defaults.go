package config

import (
	"slices"
	"strings"
	"time"
)

// Default values for the documented developer workflow.
const (
	DefaultPython        = "python3"
	DefaultSourceDir     = "docs"
	DefaultOutputDir     = "docs/_build"
	DefaultBuilder       = "html"
	DefaultSphinxBuild   = "sphinx-build"
	DefaultNATSSubject   = "docpipe.builds"
	DefaultWatchDebounce = 500 * time.Millisecond
)

// Enumerated option values.
const (
	OnExistingFail  = "fail"
	OnExistingReuse = "reuse"

	InstallMethodPip     = "pip"
	InstallMethodSetupPy = "setup.py"

	GeneratorSphinx = "sphinx"
	GeneratorNative = "native"

	OutputPolicyMerge = "merge"
	OutputPolicyClean = "clean"
)

// DefaultTooling lists the documentation-only packages: the numpydoc docstring
// processor and the Read the Docs theme.
func DefaultTooling() []string { return []string{"numpydoc", "sphinx_rtd_theme"} }

// DefaultSuffixes lists the source suffixes the native generator renders.
func DefaultSuffixes() []string { return []string{".rst", ".md", ".txt"} }

// SphinxSuffixes mirrors sphinx-build's default source_suffix; other files in
// the docs tree (requirements.txt, README.md) produce no page.
func SphinxSuffixes() []string { return []string{".rst"} }

// SourceSuffixes returns the configured suffixes, or the default set of the
// selected generator.
func (d DocsConfig) SourceSuffixes() []string {
	if len(d.Suffixes) > 0 {
		return slices.Clone(d.Suffixes)
	}
	if d.Generator == GeneratorNative {
		return DefaultSuffixes()
	}
	return SphinxSuffixes()
}

// Defaults returns a configuration pre-populated with default values. Decoding
// on top of it leaves unspecified fields (including booleans) at their defaults.
func Defaults() *Config {
	return &Config{
		Source:  SourceConfig{OnExisting: OnExistingFail},
		Install: InstallConfig{Python: DefaultPython, Method: InstallMethodPip, Tooling: DefaultTooling()},
		Docs: DocsConfig{
			SourceDir:    DefaultSourceDir,
			OutputDir:    DefaultOutputDir,
			OutputPolicy: OutputPolicyMerge,
			Generator:    GeneratorSphinx,
			Builder:      DefaultBuilder,
			SphinxBuild:  DefaultSphinxBuild,
		},
		Verify:  VerifyConfig{Enabled: true, CheckLinks: true},
		Retry:   RetryConfig{MaxRetries: 0, Backoff: RetryBackoffExponential, Initial: time.Second, Max: 30 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Notify:  NotifyConfig{Subject: DefaultNATSSubject},
		Watch:   WatchConfig{Debounce: DefaultWatchDebounce},
	}
}

// DefaultApplier applies defaults for a specific configuration domain after decoding.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// SourceDefaultApplier normalizes source options.
type SourceDefaultApplier struct{}

func (SourceDefaultApplier) Domain() string { return "source" }

func (SourceDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Source.OnExisting = normalizeOr(cfg.Source.OnExisting, OnExistingFail)
	if cfg.Source.Depth < 0 {
		cfg.Source.Depth = 0
	}
	if cfg.Source.Auth != nil {
		cfg.Source.Auth.Type = normalizeOr(cfg.Source.Auth.Type, "none")
	}
	return nil
}

// InstallDefaultApplier normalizes install options.
type InstallDefaultApplier struct{}

func (InstallDefaultApplier) Domain() string { return "install" }

func (InstallDefaultApplier) ApplyDefaults(cfg *Config) error {
	if strings.TrimSpace(cfg.Install.Python) == "" {
		cfg.Install.Python = DefaultPython
	}
	cfg.Install.Method = normalizeOr(cfg.Install.Method, InstallMethodPip)
	return nil
}

// DocsDefaultApplier normalizes docs options.
type DocsDefaultApplier struct{}

func (DocsDefaultApplier) Domain() string { return "docs" }

func (DocsDefaultApplier) ApplyDefaults(cfg *Config) error {
	d := &cfg.Docs
	if d.SourceDir == "" {
		d.SourceDir = DefaultSourceDir
	}
	if d.OutputDir == "" {
		d.OutputDir = DefaultOutputDir
	}
	d.OutputPolicy = normalizeOr(d.OutputPolicy, OutputPolicyMerge)
	d.Generator = normalizeOr(d.Generator, GeneratorSphinx)
	d.Builder = normalizeOr(d.Builder, DefaultBuilder)
	if d.SphinxBuild == "" {
		d.SphinxBuild = DefaultSphinxBuild
	}
	for i, s := range d.Suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		d.Suffixes[i] = s
	}
	if d.Jobs < 0 {
		d.Jobs = 0
	}
	return nil
}

// RuntimeDefaultApplier normalizes retry, logging, notify and watch options.
type RuntimeDefaultApplier struct{}

func (RuntimeDefaultApplier) Domain() string { return "runtime" }

func (RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if m := NormalizeRetryBackoff(string(cfg.Retry.Backoff)); m != "" {
		cfg.Retry.Backoff = m
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
	cfg.Logging.Level = normalizeOr(cfg.Logging.Level, "info")
	cfg.Logging.Format = normalizeOr(cfg.Logging.Format, "text")
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNATSSubject
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	return nil
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	appliers := []DefaultApplier{
		SourceDefaultApplier{},
		InstallDefaultApplier{},
		DocsDefaultApplier{},
		RuntimeDefaultApplier{},
	}
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

func normalizeOr(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}
