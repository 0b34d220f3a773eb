// Command marketdeploy creates and configures options markets through the
// on-chain market factory. It loads configuration, validates it, wires
// dependencies, sets up signal handling, and runs the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/alanyoungcy/optionsdeployer/internal/app"
	"github.com/alanyoungcy/optionsdeployer/internal/config"
	"github.com/alanyoungcy/optionsdeployer/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file (empty for env only)")
	mode := flag.String("mode", "", "override the configured mode (deploy or plan)")
	encryptKey := flag.String("encrypt-key", "", "encrypt MARKETDEPLOY_WALLET_PRIVATE_KEY with MARKETDEPLOY_WALLET_KEY_PASSWORD into this file and exit")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *encryptKey != "" {
		if err := writeKeyFile(*encryptKey); err != nil {
			logger.Error("failed to encrypt key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("encrypted key written", slog.String("path", *encryptKey))
		return
	}

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("market deployer starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)
	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)

	// A submitted transaction cannot be recalled; cancellation only stops
	// waiting for it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = application.Run(ctx)
	stop()
	application.Close()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted; check the factory for markets created by in-flight transactions")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
		}
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger.Info("market deployer stopped")
}

// writeKeyFile encrypts the raw key from the environment (or .env) and writes
// it to path, refusing to overwrite an existing file.
func writeKeyFile(path string) error {
	_ = godotenv.Load()

	raw := os.Getenv("MARKETDEPLOY_WALLET_PRIVATE_KEY")
	password := os.Getenv("MARKETDEPLOY_WALLET_KEY_PASSWORD")
	if raw == "" || password == "" {
		return errors.New("MARKETDEPLOY_WALLET_PRIVATE_KEY and MARKETDEPLOY_WALLET_KEY_PASSWORD must be set")
	}

	data, err := crypto.EncryptKey(raw, password)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}
