package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formfield/pkg/config"
	"github.com/goliatone/go-formfield/pkg/field"
	"github.com/goliatone/go-formfield/pkg/scope"
)

// loadConfig reads --config and applies the --templates/--base-url overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if dir, _ := cmd.Flags().GetString("templates"); dir != "" {
		cfg.Templates.Dir = dir
		cfg.Templates.BaseURL = ""
	}
	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		cfg.Templates.BaseURL = baseURL
		cfg.Templates.Dir = ""
	}
	return cfg, cfg.Validate()
}

func binderOptions(cmd *cobra.Command) (config.Config, []field.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, err
	}
	opts, err := cfg.BinderOptions()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, opts, nil
}

// loadScope seeds a root scope from --data. YAML is a superset of JSON so one
// decoder serves both.
func loadScope(cmd *cobra.Command) (*scope.Scope, error) {
	path, _ := cmd.Flags().GetString("data")
	if path == "" {
		return scope.New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data %s: %w", path, err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return scope.New(values), nil
}
