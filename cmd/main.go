package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ups-metric-sender/internal/app"
	"ups-metric-sender/internal/config"
	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/logger"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

// Exit codes
const (
	ExitOK    = 0
	ExitError = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		device      string
		dump        bool
		info        bool
		configPath  string
		showVersion bool
	)
	flags := flag.NewFlagSet("ups-metric-sender", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&device, "u", "", "UPS name (default from config, else \"myups\")")
	flags.StringVar(&device, "ups", "", "UPS name (same as -u)")
	flags.BoolVar(&dump, "d", false, "dump every status variable and exit")
	flags.BoolVar(&dump, "dump", false, "same as -d")
	flags.BoolVar(&info, "i", false, "dump product identity and exit")
	flags.BoolVar(&info, "info", false, "same as -i")
	flags.StringVar(&configPath, "config", "", "path to the configuration file")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		return ExitError
	}

	if showVersion {
		fmt.Fprintf(stdout, "ups-metric-sender %s\n", Version)
		return ExitOK
	}

	diagnosticMode := dump || info
	load := config.LoadConfig
	if diagnosticMode {
		// dump and info never deliver, so no collector settings are needed
		load = config.LoadDiagnosticsConfig
	}
	cfg, err := load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "❌ Error loading configuration: %v\n", err)
		return ExitError
	}
	cfg.SetDeviceName(device)

	closer := logger.Setup(&cfg.Logging)
	defer closer.Close()
	if diagnosticMode && cfg.Logging.File == "" {
		// stdout carries the dump
		log.SetOutput(stderr)
	}
	logger.LogStartup("Logging initialized with level: %s (config %s)", cfg.Logging.Level, cfg.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplicationBuilder(cfg).WithVersion(Version).Build(ctx)
	if err != nil {
		agenterrors.NewErrorHandler(nil).Handle(ctx, err)
		return ExitError
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.LogWarn("%v", err)
		}
	}()

	switch {
	case dump:
		err = application.Dump(ctx, stdout)
	case info:
		err = application.Info(ctx, stdout)
	default:
		err = application.Run(ctx)
	}

	if err != nil {
		// Run reports its own failure
		if diagnosticMode {
			agenterrors.NewErrorHandler(nil).Handle(ctx, err)
		}
		return ExitError
	}
	return ExitOK
}
