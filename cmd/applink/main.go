package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/app"
	"github.com/talenttrek/applink/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	runOnce      = flag.Bool("once", false, "Run a single resolution pass and exit (ignores scheduler config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Applink version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("applink.toml"); err == nil {
			configFiles = append(configFiles, "applink.toml")
		}
	}

	// Startup sequence: load config, validate, initialize logger, banner.
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Configuration rejected")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("dsn", common.MaskDSN(config.Storage.Postgres.DSN)).
		Int("batch_size", config.Resolver.BatchSize).
		Int("concurrency", config.Resolver.Concurrency).
		Msg("Configuration loaded")

	// Operator shutdown closes in-flight browser sessions and discards
	// their partial outcomes.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if config.Scheduler.Enabled && !*runOnce {
		if err := application.Scheduler.Start(ctx, config.Scheduler.Schedule); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			os.Exit(1)
		}

		logger.Info().Msg("Scheduler running - Press Ctrl+C to stop")
		<-ctx.Done()

		application.Scheduler.Stop()
		logger.Info().Msg("Shutdown complete")
		return
	}

	report, err := application.Pipeline.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Resolution run failed")
		application.Close()
		os.Exit(1)
	}

	logger.Info().
		Str("run_id", report.RunID).
		Int("attempted", report.Attempted).
		Int("resolved", report.Resolved).
		Int("fallback", report.Fallback).
		Int("remaining", report.Remaining).
		Msg("Run complete")
}
