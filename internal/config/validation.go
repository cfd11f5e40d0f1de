package config

import (
	"fmt"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Validate checks enumerations and cross-field rules. It does not require a
// source URL: commands that skip the fetch stage run without one.
func Validate(cfg *Config) error {
	checks := []func(*Config) error{
		validateSource,
		validateInstall,
		validateDocs,
		validateRetry,
		validateRuntime,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateSource(cfg *Config) error {
	if err := oneOf("source.on_existing", cfg.Source.OnExisting, OnExistingFail, OnExistingReuse); err != nil {
		return err
	}
	if a := cfg.Source.Auth; a != nil {
		if err := oneOf("source.auth.type", a.Type, "none", "ssh", "token", "basic"); err != nil {
			return err
		}
		switch a.Type {
		case "token":
			if a.Token == "" {
				return invalid("source.auth.token", "token authentication requires a token")
			}
		case "basic":
			if a.Username == "" || a.Password == "" {
				return invalid("source.auth", "basic authentication requires username and password")
			}
		}
	}
	if cfg.Source.Ephemeral && !filepath.IsAbs(cfg.Docs.OutputDir) {
		return invalid("docs.output_dir", "ephemeral source checkouts require an absolute output directory")
	}
	return nil
}

func validateInstall(cfg *Config) error {
	return oneOf("install.method", cfg.Install.Method, InstallMethodPip, InstallMethodSetupPy)
}

func validateDocs(cfg *Config) error {
	if err := oneOf("docs.generator", cfg.Docs.Generator, GeneratorSphinx, GeneratorNative); err != nil {
		return err
	}
	if err := oneOf("docs.output_policy", cfg.Docs.OutputPolicy, OutputPolicyMerge, OutputPolicyClean); err != nil {
		return err
	}
	if cfg.Docs.Generator == GeneratorNative && cfg.Docs.Builder != DefaultBuilder {
		return invalid("docs.builder", "the native generator only supports the html builder")
	}
	if filepath.Clean(cfg.Docs.SourceDir) == filepath.Clean(cfg.Docs.OutputDir) {
		return invalid("docs.output_dir", "output directory must differ from the documentation source directory")
	}
	return nil
}

func validateRetry(cfg *Config) error {
	if NormalizeRetryBackoff(string(cfg.Retry.Backoff)) == "" {
		return invalid("retry.backoff", fmt.Sprintf("unknown backoff mode %q", cfg.Retry.Backoff))
	}
	if cfg.Retry.Initial < 0 || cfg.Retry.Max < 0 {
		return invalid("retry", "durations cannot be negative")
	}
	return nil
}

func validateRuntime(cfg *Config) error {
	if err := oneOf("logging.level", cfg.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("logging.format", cfg.Logging.Format, "text", "json"); err != nil {
		return err
	}
	if cfg.Schedule.Every < 0 {
		return invalid("schedule.every", "interval cannot be negative")
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return invalid(field, fmt.Sprintf("unsupported value %q (allowed: %v)", value, allowed))
}

func invalid(field, msg string) error {
	return errors.ValidationError(msg).WithContext("field", field).Build()
}
