package model

import (
	"context"
	"io"
	"log/slog"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers (optional).
const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	DomainSecurity = "security"
	DomainStyle    = "style"
	DomainDocs     = "docs"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int               `json:"version" yaml:"version"` // fixed 0 for now
	Sniffer Sniffer           `json:"sniffer" yaml:"sniffer"`
	Domains map[string]Domain `json:"domains,omitempty" yaml:"domains,omitempty"`
	Scans   []Scan            `json:"scans,omitempty" yaml:"scans,omitempty"`
	Service Service           `json:"service" yaml:"service"`
}

// Sniffer holds the scheduler knobs.
type Sniffer struct {
	MaxConcurrentJobs int    `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
	CacheTTL          string `json:"cache_ttl" yaml:"cache_ttl"`             // e.g. "15m", "1h30m"
	HandlerTimeout    string `json:"handler_timeout" yaml:"handler_timeout"` // "0s" disables the bound
	ReportDir         string `json:"report_dir,omitempty" yaml:"report_dir,omitempty"`
}

// Domain enables or disables one analysis domain.
type Domain struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// Scan describes one job submission: which paths, which domains, how urgent.
// Paths may be directories; they are expanded to regular files at submit time.
type Scan struct {
	Name     string   `json:"name" yaml:"name"`
	Paths    []string `json:"paths" yaml:"paths"`
	Domains  []string `json:"domains,omitempty" yaml:"domains,omitempty"` // empty => all enabled domains
	Priority int      `json:"priority" yaml:"priority"`                   // lower = more urgent
	Fix      *bool    `json:"fix,omitempty" yaml:"fix,omitempty"`
}

// Service mode and logging.
type Service struct {
	Mode     string         `json:"mode" yaml:"mode"` // "manual" | "timer"
	Schedule *TimerSchedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Verbose  *bool          `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log      *string        `json:"log,omitempty" yaml:"log,omitempty"` // "stderr"|"stdout"|"discard"
}

// TimerSchedule is a tagged union: exactly one of cron or duration.
type TimerSchedule struct {
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// EnabledDomains returns the names of domains explicitly enabled in config.
func (c Config) EnabledDomains() []string {
	// stable order for known domains, extras appended alphabetically later
	var out []string
	for _, name := range []string{DomainSecurity, DomainStyle, DomainDocs} {
		if d, ok := c.Domains[name]; ok && d.Enabled != nil && *d.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// LoadConfig validates YAML from r against the CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("sniffer.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

// DefaultConfig is written on the very first run when no config file exists.
// All three built-in domains enabled, manual mode, one scan of the CWD.
func DefaultConfig(ctx context.Context) Config {
	slog.DebugContext(ctx, "using default configuration")
	enabled := true
	return Config{
		Version: 0,
		Sniffer: Sniffer{
			MaxConcurrentJobs: 4,
			CacheTTL:          "15m",
			HandlerTimeout:    "5m",
		},
		Domains: map[string]Domain{
			DomainSecurity: {Enabled: &enabled},
			DomainStyle:    {Enabled: &enabled},
			DomainDocs:     {Enabled: &enabled},
		},
		Scans: []Scan{
			{Name: "default", Paths: []string{"."}, Priority: 10},
		},
		Service: Service{
			Mode: ServiceModeManual,
		},
	}
}
