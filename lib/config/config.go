// Package config loads page settings: the markup attribute names used for
// ids, types and encoded state, the field encoding mode and key, and log
// verbosity.
//
//	attributes:
//	  id: data-ctl-id
//	  type: data-ctl-type
//	fields:
//	  mode: signed
//	  key: change-me
//	log:
//	  verbosity: 1
package config

import (
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/pthm/hxctl/lib/encoding"
)

// Attributes names the markup attributes activation reads and rendering
// writes.
type Attributes struct {
	ID     string `yaml:"id"`
	Type   string `yaml:"type"`
	Fields string `yaml:"fields"`
	Named  string `yaml:"named"`
}

// Fields configures the encoding of control state in markup.
type Fields struct {
	Mode string `yaml:"mode"`
	Key  string `yaml:"key"`
}

// Log configures logging.
type Log struct {
	Verbosity int `yaml:"verbosity"`
}

// Config is the full page configuration.
type Config struct {
	Attributes Attributes `yaml:"attributes"`
	Fields     Fields     `yaml:"fields"`
	Log        Log        `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Attributes: Attributes{
			ID:     "data-ctl-id",
			Type:   "data-ctl-type",
			Fields: "data-ctl-fields",
			Named:  "data-ctl-named",
		},
		Fields: Fields{Mode: string(encoding.Plain)},
	}
}

// Load reads a YAML file from fs, fills unset values from Default and
// validates the result. The FIELDS_KEY environment variable, when set,
// overrides fields.key so secrets need not live in the file.
func Load(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cannot read config %s", path)
	}
	return Parse(data)
}

// Parse is Load over raw bytes.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "cannot parse config")
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, errors.Wrap(err, "cannot apply config defaults")
	}
	if key := os.Getenv("FIELDS_KEY"); key != "" {
		cfg.Fields.Key = key
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks attribute names and the field mode.
func Validate(cfg Config) error {
	names := map[string]string{
		"id":     cfg.Attributes.ID,
		"type":   cfg.Attributes.Type,
		"fields": cfg.Attributes.Fields,
		"named":  cfg.Attributes.Named,
	}
	seen := make(map[string]string, len(names))
	for _, role := range []string{"id", "type", "fields", "named"} {
		name := names[role]
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\"'=<>") {
			return errors.Errorf("invalid %s attribute name %q", role, name)
		}
		if other, ok := seen[name]; ok {
			return errors.Errorf("attribute %q used for both %s and %s", name, other, role)
		}
		seen[name] = role
	}

	mode, err := encoding.ParseMode(cfg.Fields.Mode)
	if err != nil {
		return err
	}
	if mode != encoding.Plain && cfg.Fields.Key == "" {
		return errors.Errorf("fields mode %s requires a key", mode)
	}
	if cfg.Log.Verbosity < 0 {
		return errors.Errorf("log verbosity must be >= 0, got %d", cfg.Log.Verbosity)
	}
	return nil
}

// Codec builds the field codec described by cfg.
func (cfg Config) Codec() (*encoding.Codec, error) {
	mode, err := encoding.ParseMode(cfg.Fields.Mode)
	if err != nil {
		return nil, err
	}
	return encoding.NewCodec(mode, []byte(cfg.Fields.Key))
}
