// Package main is the entry point for the TempAgent application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"tempagent/internal/config"
	"tempagent/internal/hardware"
	"tempagent/internal/logger"
	"tempagent/internal/provider"
	"tempagent/internal/reading"
	"tempagent/internal/scheduler"
	"tempagent/internal/service"
	"tempagent/internal/writer"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const defaultStartupErrorDir = "log/tempagent"

type options struct {
	configPath  string
	loggingPath string
	list        bool
	once        bool
	showVersion bool
}

func parseFlags(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("tempagent", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "conf/tempagent/TempAgent.json", "path to the agent configuration file")
	flagSet.StringVarP(&opts.loggingPath, "logging", "l", "conf/tempagent/Logging.json", "path to the logging configuration file")
	flagSet.BoolVar(&opts.list, "list", false, "print the hardware topology once and exit")
	flagSet.BoolVar(&opts.once, "once", false, "take one sample, write the temperature file and exit")
	flagSet.BoolVar(&opts.showVersion, "version", false, "show version information")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.list && opts.once {
		return nil, errors.New("--list and --once are mutually exclusive")
	}
	return &opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("TempAgent %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	startupFs := afero.NewOsFs()
	fail := func(dir, what string, err error) {
		service.ReportStartupError(service.Name, err)
		_ = service.WriteStartupErrorFile(startupFs, dir, err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
		os.Exit(1)
	}

	// A service starts in C:\Windows\System32 or /. An absolute config path
	// (<base>/conf/tempagent/TempAgent.json) locates the install base.
	if filepath.IsAbs(opts.configPath) {
		basePath := filepath.Dir(filepath.Dir(filepath.Dir(opts.configPath)))
		if err := os.Chdir(basePath); err != nil {
			fail(defaultStartupErrorDir, "Failed to change directory", fmt.Errorf("failed to chdir to %s: %w", basePath, err))
		}
	}

	if service.NewService(nil).IsService() {
		logger.SetServiceMode(true)
	}

	cfg, lc, err := config.LoadAll(opts.configPath, opts.loggingPath)
	if err != nil {
		fail(defaultStartupErrorDir, "Failed to load configuration", err)
	}

	startupErrorDir := defaultStartupErrorDir
	if lc.FilePath != "" {
		startupErrorDir = filepath.Dir(lc.FilePath)
	}

	if err := logger.Init(*lc); err != nil {
		fail(startupErrorDir, "Failed to initialize logger", err)
	}
	defer logger.Close()

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("config", opts.configPath).
		Str("logging", opts.loggingPath).
		Str("provider", cfg.ResolveProviderType()).
		Str("temperature_file", cfg.TemperatureFile).
		Msg("Starting TempAgent")

	switch {
	case opts.list:
		if err := listTopology(context.Background(), cfg, os.Stdout); err != nil {
			log.Error().Err(err).Msg("Failed to list hardware")
			logger.Close()
			os.Exit(1)
		}
		return
	case opts.once:
		if err := runOnce(context.Background(), cfg); err != nil {
			log.Error().Err(err).Msg("Sampling failed")
			logger.Close()
			os.Exit(1)
		}
		return
	}

	svc := service.NewService(func(ctx context.Context, ready func()) error {
		return run(ctx, ready, cfg, opts.loggingPath, startupErrorDir)
	})

	if err := svc.Run(context.Background()); err != nil {
		service.ReportStartupError(service.Name, err)
		_ = service.WriteStartupErrorFile(startupFs, startupErrorDir, err)
		log.Error().Err(err).Msg("Service exited with error")
		logger.Close()
		os.Exit(1)
	}

	log.Info().Msg("TempAgent stopped")
}

func newScheduler(cfg *config.Config) (*scheduler.Scheduler, error) {
	p, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}
	fw := writer.NewFileWriter(afero.NewOsFs(), cfg.TemperatureFile)
	return scheduler.New(p, fw, scheduler.OptionsFromConfig(cfg)), nil
}

func run(ctx context.Context, ready func(), cfg *config.Config, loggingPath, startupErrorDir string) error {
	log := logger.WithComponent("main")

	sched, err := newScheduler(cfg)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	ready()

	if err := service.ClearStartupErrorFile(afero.NewOsFs(), startupErrorDir); err != nil {
		log.Warn().Err(err).Msg("Failed to remove stale startup error file")
	}

	stopWatcher := watchLogging(loggingPath)
	defer stopWatcher()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	return sched.Stop()
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	sched, err := newScheduler(cfg)
	if err != nil {
		return err
	}
	return sched.RunOnce(ctx)
}

// watchLogging hot-reloads Logging.json. It returns a function that stops
// the watcher.
func watchLogging(loggingPath string) func() {
	log := logger.WithComponent("main")

	w, err := config.NewLoggingWatcher(loggingPath, func(lc *logger.Config) {
		if err := logger.Init(*lc); err != nil {
			log.Error().Err(err).Msg("Failed to update logging configuration")
			return
		}
		mainLog := logger.WithComponent("main")
		mainLog.Info().Str("level", lc.Level).Msg("Logging configuration updated")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create logging watcher, hot reload disabled")
		return func() {}
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start logging watcher, hot reload disabled")
		return func() {}
	}
	return func() {
		if err := w.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping logging watcher")
		}
	}
}

func listTopology(ctx context.Context, cfg *config.Config, out io.Writer) error {
	p, err := provider.New(cfg)
	if err != nil {
		return err
	}
	if err := p.Open(ctx, cfg.Hardware.Categories()); err != nil {
		return fmt.Errorf("failed to open %s provider: %w", p.Name(), err)
	}
	defer p.Close()

	nodes, err := p.Hardware(ctx)
	if err != nil {
		return err
	}
	printTopology(out, nodes)
	return nil
}

// printTopology writes the tree in visit order. Sensors that would be
// written to the temperature file are marked with '*'.
func printTopology(out io.Writer, nodes []hardware.Node) {
	var printNode func(n hardware.Node, depth int)
	printNode = func(n hardware.Node, depth int) {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(out, "%s%s [%s]\n", indent, n.Name, n.Kind)
		for _, s := range n.Sensors {
			mark := " "
			if reading.IsRelevant(s) {
				mark = "*"
			}
			value := "-"
			if s.Value != nil {
				value = fmt.Sprintf("%.1f", *s.Value)
			}
			fmt.Fprintf(out, "%s  %s %-12s %-32s %s\n", indent, mark, s.Type, s.Name, value)
		}
		for _, sub := range n.SubHardware {
			printNode(sub, depth+1)
		}
	}
	for _, n := range nodes {
		printNode(n, 0)
	}
}
