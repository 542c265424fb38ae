// Package config loads binder settings from a YAML or TOML file. Files ending
// in .toml are read as TOML; everything else as YAML.
//
//	templates:
//	  dir: ./templates        # or baseURL: https://cdn.example.com/fields/
//	  extension: .html
//	  timeout: 5s
//	  data:
//	    tokens:
//	      field_class: form-row
//	directives:
//	  forbidden: [repeat, switch, if]
//	sanitize: true
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formfield/pkg/field"
	"github.com/goliatone/go-formfield/pkg/templates"
)

// Config mirrors the file.
type Config struct {
	Templates  TemplatesConfig  `yaml:"templates" toml:"templates"`
	Directives DirectivesConfig `yaml:"directives" toml:"directives"`
	Sanitize   bool             `yaml:"sanitize" toml:"sanitize"`
}

// TemplatesConfig selects where templates come from. Dir and BaseURL are
// mutually exclusive; with neither the embedded templates are used.
type TemplatesConfig struct {
	Dir       string         `yaml:"dir" toml:"dir"`
	BaseURL   string         `yaml:"baseURL" toml:"baseURL"`
	Extension string         `yaml:"extension" toml:"extension"`
	Timeout   time.Duration  `yaml:"timeout" toml:"timeout"`
	Data      map[string]any `yaml:"data" toml:"data"`
}

// DirectivesConfig overrides the structural directives a host may not carry.
// A nil list keeps the defaults; an empty list forbids nothing.
type DirectivesConfig struct {
	Forbidden []string `yaml:"forbidden" toml:"forbidden"`
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a payload. source names it in errors and picks
// the format by extension.
func Parse(data []byte, source string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(string(data)) == "" {
		return Config{}, fmt.Errorf("config: file %s is empty", source)
	}
	if err := decode(data, source, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", source, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", source, err)
	}
	return cfg, nil
}

func decode(data []byte, source string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(source), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks for conflicting settings.
func (c Config) Validate() error {
	if c.Templates.Dir != "" && c.Templates.BaseURL != "" {
		return fmt.Errorf("templates.dir and templates.baseURL are mutually exclusive")
	}
	if c.Templates.Timeout < 0 {
		return fmt.Errorf("templates.timeout must not be negative")
	}
	for idx, name := range c.Directives.Forbidden {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("directives.forbidden contains an empty entry at index %d", idx)
		}
	}
	return nil
}

// Resolver builds the template resolver described by the file.
func (c Config) Resolver() (templates.Resolver, error) {
	t := c.Templates
	if t.BaseURL != "" {
		var opts []templates.HTTPOption
		if t.Timeout > 0 {
			opts = append(opts, templates.WithTimeout(t.Timeout))
		}
		if t.Extension != "" {
			opts = append(opts, templates.WithHTTPExtension(t.Extension))
		}
		return templates.NewHTTPResolver(t.BaseURL, opts...), nil
	}

	var opts []templates.Option
	if t.Extension != "" {
		opts = append(opts, templates.WithExtension(t.Extension))
	}
	if len(t.Data) > 0 {
		opts = append(opts, templates.WithData(t.Data))
	}
	if t.Dir != "" {
		resolver, err := templates.NewDirResolver(t.Dir, opts...)
		if err != nil {
			return nil, fmt.Errorf("config: templates.dir: %w", err)
		}
		return resolver, nil
	}
	resolver, err := templates.NewFSResolver(templates.FS(), opts...)
	if err != nil {
		return nil, fmt.Errorf("config: embedded templates: %w", err)
	}
	return resolver, nil
}

// BinderOptions converts the file into field.Binder options.
func (c Config) BinderOptions() ([]field.Option, error) {
	resolver, err := c.Resolver()
	if err != nil {
		return nil, err
	}
	opts := []field.Option{field.WithResolver(resolver)}
	if c.Directives.Forbidden != nil {
		opts = append(opts, field.WithForbiddenDirectives(c.Directives.Forbidden...))
	}
	return opts, nil
}
