package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raf-andrew/sniffer/internal/domains"
	"github.com/raf-andrew/sniffer/internal/log"
	"github.com/raf-andrew/sniffer/internal/model"
	"github.com/raf-andrew/sniffer/internal/sniff"
)

var (
	userConfigPath string // default config dir for sniffer on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "sniffer")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is sniffer.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initSniffer

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("sniffer failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "sniffer",
	Short:        "Schedules multi-domain static analysis jobs across source files",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run executes the configured scans, repeatedly when service mode is timer",
	RunE:  doRun,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "scan submits the configured scans once and prints the job records as JSON",
	RunE:  doScan,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of the sniffer",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("sniffer: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("sniffer: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.ContextAttrs(ctx, slog.Group("sniffer",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	orch, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := orch.Shutdown(); err != nil && err != model.ErrShutdown {
			slog.ErrorContext(ctx, "shutdown", "error", err)
		}
	}()

	return sniff.NewService(orch, config).Run(ctx)
}

func doScan(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("sniffer",
		slog.String("cmd", "scan"),
		slog.Int("pid", os.Getpid()),
	))

	orch, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := orch.Shutdown(); err != nil && err != model.ErrShutdown {
			slog.ErrorContext(ctx, "shutdown", "error", err)
		}
	}()

	statuses, err := sniff.NewService(orch, config).RunOnce(ctx)
	if err != nil {
		return err
	}

	records := make([]model.JobRecord, 0, len(statuses))
	for _, st := range statuses {
		if st.Result != nil {
			records = append(records, *st.Result)
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func newOrchestrator(cmd *cobra.Command) (*sniff.Orchestrator, error) {
	registry, err := domains.BuiltIn(config.EnabledDomains())
	if err != nil {
		return nil, err
	}
	if len(registry.Names()) == 0 {
		return nil, fmt.Errorf("no domains enabled in %s", configPath)
	}
	return sniff.New(cmd.Context(), config, registry)
}

func initSniffer(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("SNIFFERCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "sniffer.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig(cmd.Context())
		configPath = filepath.Join(userConfigPath, "sniffer.yaml")
		err := os.MkdirAll(filepath.Dir(configPath), 0755)
		if err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", configPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		enc := yaml.NewEncoder(f)
		if err := enc.Encode(config); err != nil {
			return fmt.Errorf("storing configuration: %w", err)
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("config validation", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// --verbose has a precedence over config file
	verbose := flagVerbose
	if !verbose && config.Service.Verbose != nil {
		verbose = *config.Service.Verbose
	}

	dst := model.LogStderr
	if config.Service.Log != nil {
		dst = *config.Service.Log
	}
	slog.SetDefault(log.New(log.Output(dst), verbose))

	slog.Debug("sniffer starting", "configPath", configPath)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
