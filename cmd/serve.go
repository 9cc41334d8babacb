package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"chatproxy/internal/config"
	"chatproxy/internal/logging"
	"chatproxy/internal/platform"
	"chatproxy/internal/router"
	"chatproxy/internal/server"
	"chatproxy/internal/upstream"
)

const serveUsage = `Usage:
  chatproxy serve [--config <path>] [--env-file <path>] [--port <port>]

Flags:
  --config   string   Path to YAML configuration file (built-in defaults when omitted)
  --env-file string   Dotenv file loaded before reading the environment (default ".env")
  --port     int      Override server port from configuration and environment`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var (
		cfgPath      string
		envFile      string
		overridePort int
	)
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := loadConfig(cfgPath, envFile)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	logger := logging.New(cfg.Log.Mode)
	defer func() { _ = logger.Sync() }()

	registry, err := platform.NewRegistry(platform.Merge(platform.DefaultEndpoints(), cfg.Platforms))
	if err != nil {
		return fmt.Errorf("build platform registry: %w", err)
	}

	rt := router.New(registry)
	client := upstream.New(cfg.Upstream, logger)

	srv, err := server.New(cfg, rt, client, logger)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func loadConfig(cfgPath, envFile string) (config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return config.Config{}, err
		}
	}

	env, err := config.ParseEnv()
	if err != nil {
		return config.Config{}, err
	}
	if err := env.Apply(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("apply environment: %w", err)
	}
	return cfg, nil
}
