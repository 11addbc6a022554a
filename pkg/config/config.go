package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/bfc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatHashComments Feature = iota
	FeatCComments
	FeatCEsc
	FeatImplicitDecl
	FeatNoDirectives
	FeatInput
	FeatCount
)

type Warning int

const (
	WarnOverflow Warning = iota
	WarnTruncatedChar
	WarnUnrecognizedEscape
	WarnImplicitDecl
	WarnRedeclare
	WarnPedantic
	WarnExtra
	WarnCount
)

const (
	DefaultTapeSize  = 30000
	DefaultCellBits  = 8
	DefaultLineWidth = 50
	DefaultBackend   = "bf"
)

var Backends = []string{"bf", "c", "qbe"}

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	TapeSize      int
	CellBits      int
	LineWidth     int
	BackendName   string
	BackendTarget string
	TargetArch    string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:    make(map[Feature]Info),
		Warnings:    make(map[Warning]Info),
		FeatureMap:  make(map[string]Feature),
		WarningMap:  make(map[string]Warning),
		TapeSize:    DefaultTapeSize,
		CellBits:    DefaultCellBits,
		LineWidth:   DefaultLineWidth,
		BackendName: DefaultBackend,
	}

	features := map[Feature]Info{
		FeatHashComments: {"hash-comments", true, "Recognize '#' line comments."},
		FeatCComments:    {"c-comments", true, "Recognize C-style '//' and '/* */' comments."},
		FeatCEsc:         {"c-esc", true, "Recognize C-style '\\' escapes in strings and characters."},
		FeatImplicitDecl: {"implicit-decl", false, "Allow assigning to a variable that was never declared with 'var'."},
		FeatNoDirectives: {"no-directives", false, "Disable `// [bfc]:` directives."},
		FeatInput:        {"input", true, "Allow the 'input' statement."},
	}

	warnings := map[Warning]Info{
		WarnOverflow:           {"overflow", true, "Warn when a constant does not fit in a cell and wraps."},
		WarnTruncatedChar:      {"truncated-char", true, "Warn when a character escape value is truncated to a byte."},
		WarnUnrecognizedEscape: {"u-esc", true, "Warn on unrecognized character escape sequences."},
		WarnImplicitDecl:       {"implicit-decl", true, "Warn about variables declared by their first assignment."},
		WarnRedeclare:          {"redeclare", true, "Warn when 'var' names a variable that is already bound."},
		WarnPedantic:           {"pedantic", false, "Issue all warnings, including stylistic ones."},
		WarnExtra:              {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget picks the QBE target, defaulting to the host.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		qbeTarget = libqbe.DefaultTarget(goos, goarch)
	}
	c.BackendTarget = qbeTarget
	c.TargetArch = goarch
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// Modulus is the number of distinct values a cell holds.
func (c *Config) Modulus() int64 { return int64(1) << uint(c.CellBits) }

func (c *Config) Validate() error {
	if c.TapeSize < 1 {
		return fmt.Errorf("tape size must be positive, got %d", c.TapeSize)
	}
	switch c.CellBits {
	case 8, 16, 32:
	default:
		return fmt.Errorf("cell width must be 8, 16 or 32 bits, got %d", c.CellBits)
	}
	if c.LineWidth < 0 {
		return fmt.Errorf("line width cannot be negative, got %d", c.LineWidth)
	}
	for _, b := range Backends {
		if b == c.BackendName {
			return nil
		}
	}
	return fmt.Errorf("unsupported backend '%s'. Supported: %s", c.BackendName, strings.Join(Backends, ", "))
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		name = trimmed
		isWarning = true
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	if name == "pedantic" && isWarning {
		c.SetWarning(WarnPedantic, true)
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessDirectiveFlags applies the flags of a `// [bfc]:` directive.
func (c *Config) ProcessDirectiveFlags(flagStr string) {
	for _, flag := range strings.Fields(flagStr) {
		c.applyFlag(flag)
	}
}

// SetupFlagGroups registers -W and -F flags for every warning and feature so
// they show up in the help page. Their values are read back through
// ProcessFlags.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) {
	group := func(prefix string, infos []Info) []cli.FlagGroupEntry {
		entries := make([]cli.FlagGroupEntry, len(infos))
		for i, info := range infos {
			enabled, disabled := info.Enabled, false
			entries[i] = cli.FlagGroupEntry{
				Name: info.Name, Prefix: prefix, Usage: info.Description,
				Enabled: &enabled, Disabled: &disabled,
			}
		}
		return entries
	}

	warnings := make([]Info, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		warnings[i] = c.Warnings[i]
	}
	features := make([]Info, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		features[i] = c.Features[i]
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warning Flags:", group("W", warnings))
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature flag", "Available feature flags:", group("F", features))
}

// ProcessFlags applies the -W/-F flags given on the command line, in two
// passes so -Wall and -pedantic never override a more specific flag.
func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) {
	umbrella := func(name string) bool { return name == "Wall" || name == "Wno-all" || name == "pedantic" }
	visitFlag(func(name string) {
		if umbrella(name) {
			c.applyFlag("-" + name)
		}
	})
	visitFlag(func(name string) {
		if !umbrella(name) && (strings.HasPrefix(name, "W") || strings.HasPrefix(name, "F")) {
			c.applyFlag("-" + name)
		}
	})
}
