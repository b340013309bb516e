package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/raf-andrew/sniffer/internal/model"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	yml := `
version: 0
sniffer:
  max_concurrent_jobs: 8
  cache_ttl: 1h30m
domains:
  security:
    enabled: true
  style:
    enabled: true
scans:
  - name: backend
    paths: ["./src"]
    domains: ["security"]
    priority: 1
    fix: true
service:
  mode: manual
  log: stderr
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Sniffer.MaxConcurrentJobs)
	require.Equal(t, "1h30m", cfg.Sniffer.CacheTTL)
	// schema default
	require.Equal(t, "5m", cfg.Sniffer.HandlerTimeout)
	require.Equal(t, []string{"security", "style"}, cfg.EnabledDomains())
	require.Len(t, cfg.Scans, 1)
	require.Equal(t, "backend", cfg.Scans[0].Name)
	require.Equal(t, 1, cfg.Scans[0].Priority)
	require.NotNil(t, cfg.Scans[0].Fix)
	require.True(t, *cfg.Scans[0].Fix)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.NotNil(t, cfg.Service.Log)
	require.Equal(t, model.LogStderr, *cfg.Service.Log)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		yml      string
	}{
		{"bad mode", `
version: 0
sniffer: {}
service:
  mode: daemon
`},
		{"empty paths", `
version: 0
sniffer: {}
scans:
  - name: x
    paths: []
service:
  mode: manual
`},
		{"bad ttl", `
version: 0
sniffer:
  cache_ttl: fifteen minutes
service:
  mode: manual
`},
		{"too many workers", `
version: 0
sniffer:
  max_concurrent_jobs: 1000
service:
  mode: manual
`},
		{"unknown field", `
version: 0
sniffer:
  max_workers: 4
service:
  mode: manual
`},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tt.yml))
			require.Error(t, err)
			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig(t.Context())
	require.Equal(t, 0, cfg.Version)
	require.Equal(t, 4, cfg.Sniffer.MaxConcurrentJobs)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.ElementsMatch(t,
		[]string{model.DomainSecurity, model.DomainStyle, model.DomainDocs},
		cfg.EnabledDomains(),
	)
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		given    string
		expected time.Duration
		fails    bool
	}{
		{"15m", 15 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"2d", 48 * time.Hour, false},
		{"1d2h3m4s", 26*time.Hour + 3*time.Minute + 4*time.Second, false},
		{"0s", 0, false},
		{"", 0, true},
		{"5x", 0, true},
		{"m5", 0, true},
	}

	for _, tt := range testCases {
		t.Run(tt.given, func(t *testing.T) {
			t.Parallel()
			d, err := model.ParseDuration(tt.given)
			if tt.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, d)
		})
	}
}

func TestParseCron(t *testing.T) {
	t.Parallel()

	interval, err := model.ParseCron("*/5 * * * *")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, interval)

	interval, err = model.ParseCron("@hourly")
	require.NoError(t, err)
	require.Equal(t, time.Hour, interval)

	_, err = model.ParseCron("")
	require.Error(t, err)
	_, err = model.ParseCron("* * *")
	require.Error(t, err)
}
