package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Example returns the configuration written by `docpipe init`: the developer
// guide workflow for a Python project documented with Sphinx.
func Example() *Config {
	cfg := Defaults()
	cfg.Source.URL = "https://github.com/nengo/nengo.git"
	cfg.Install.Method = InstallMethodSetupPy
	cfg.Docs.Title = "Project Documentation"
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	data, err := yaml.Marshal(Example())
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
