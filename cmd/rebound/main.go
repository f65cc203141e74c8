// Package main is the entry point for the rebound gateway.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	logDir      string
	showVersion bool
}

func main() {
	flags := parseFlags(os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	bootstrap := initLogger(observability.LogConfig{
		Level:  orDefault(flags.logLevel, config.DefaultLogLevel),
		Format: orDefault(flags.logFormat, config.DefaultLogFormat),
	})

	cfg := loadAndValidateConfig(flags.configPath, bootstrap)

	logger := initLogger(logConfigFor(flags, cfg.Logging))
	defer func() { _ = logger.Sync() }()

	app, err := initApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", observability.Error(err))
	}

	runGateway(app, flags.configPath)
}

// parseFlags parses command line flags. Unset flags fall back to the
// REBOUND_* environment variables.
func parseFlags(args []string) cliFlags {
	fs := flag.NewFlagSet("rebound", flag.ExitOnError)

	configPath := fs.String("config", getEnvOrDefault(envConfigFile, defaultConfigPath),
		"Path to configuration file")
	logLevel := fs.String("log-level", os.Getenv(envLogLevel),
		"Log level (debug, info, warn, error); overrides logging.level")
	logFormat := fs.String("log-format", os.Getenv(envLogFormat),
		"Log format (json, console); overrides logging.format")
	logDir := fs.String("log-dir", os.Getenv(envLogDir),
		"Directory for the rolling rebound.log; overrides logging.dir")
	showVersion := fs.Bool("version", false, "Show version information")
	_ = fs.Parse(args)

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		logDir:      *logDir,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("rebound version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger creates the process logger or exits.
func initLogger(cfg observability.LogConfig) observability.Logger {
	logger, err := observability.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// logConfigFor merges the logging section with command line overrides.
func logConfigFor(flags cliFlags, lc config.LoggingConfig) observability.LogConfig {
	return observability.LogConfig{
		Level:      orDefault(flags.logLevel, orDefault(lc.Level, config.DefaultLogLevel)),
		Format:     orDefault(flags.logFormat, orDefault(lc.Format, config.DefaultLogFormat)),
		Output:     "stdout",
		Dir:        orDefault(flags.logDir, lc.Dir),
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
	}
}

// loadAndValidateConfig loads and validates the configuration or exits.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.ReboundConfig {
	logger.Info("starting rebound",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("listen", cfg.Listener.Address),
		observability.Int("workers", cfg.Workers.Count),
		observability.Int("rules", len(cfg.Rules)),
	)

	return cfg
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
