package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "BFC_"

// File mirrors bfc.yaml. Environment variables use the same keys with the
// BFC_ prefix, e.g. BFC_TAPE_SIZE=1000.
type File struct {
	TapeSize  int             `koanf:"tape_size"`
	CellBits  int             `koanf:"cell_bits"`
	LineWidth int             `koanf:"line_width"`
	Backend   string          `koanf:"backend"`
	Target    string          `koanf:"target"`
	Warnings  map[string]bool `koanf:"warnings"`
	Features  map[string]bool `koanf:"features"`
}

// findConfigFile returns explicit, or bfc.yaml / bfc.yml from the working
// directory, or "" when there is none.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"bfc.yaml", "bfc.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load layers defaults, the config file and BFC_* environment variables,
// in that order, onto c. It returns the config file that was read, if any.
// Command-line flags are applied by the caller afterwards.
func (c *Config) Load(explicit string) (string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"tape_size":  c.TapeSize,
		"cell_bits":  c.CellBits,
		"line_width": c.LineWidth,
		"backend":    c.BackendName,
		"target":     c.BackendTarget,
	}, "."), nil); err != nil {
		return "", fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(explicit)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return "", fmt.Errorf("failed to load env vars: %w", err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return "", fmt.Errorf("unable to decode config: %w", err)
	}
	if err := c.apply(&f); err != nil {
		if used != "" {
			return used, fmt.Errorf("%s: %w", used, err)
		}
		return used, err
	}
	return used, nil
}

func (c *Config) apply(f *File) error {
	c.TapeSize = f.TapeSize
	c.CellBits = f.CellBits
	c.LineWidth = f.LineWidth
	c.BackendName = f.Backend
	c.BackendTarget = f.Target

	for _, name := range sortedKeys(f.Warnings) {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, f.Warnings[name])
	}
	for _, name := range sortedKeys(f.Features) {
		ft, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s'", name)
		}
		c.SetFeature(ft, f.Features[name])
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
