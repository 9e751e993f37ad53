package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mclaunch/internal/config"
	"mclaunch/internal/fault"
	"mclaunch/internal/layout"
	"mclaunch/internal/logging"
)

// exitError carries the exit status of the launched game out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("game exited with code %d", e.code)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, fault.ErrBusy), errors.Is(err, fault.ErrAlreadyRunning):
		return 2
	case errors.Is(err, fault.ErrConnectivity), errors.Is(err, fault.ErrNetwork):
		return 3
	case errors.Is(err, fault.ErrNotFound), errors.Is(err, fault.ErrMissingArtifact):
		return 4
	case errors.Is(err, fault.ErrJavaInvalid):
		return 5
	default:
		return 1
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and prepares its root with prepareRoot.
func setup(configPath string) (*config.Config, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := prepareRoot(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

// prepareRoot creates the root layout and installs the launcher logger as
// the default one. The returned function closes the log.
func prepareRoot(cfg *config.Config) (func(), error) {
	if err := layout.SetupDirectories(cfg.RootDir, layout.CacheDir(cfg.RootDir), layout.LogDir(cfg.RootDir)); err != nil {
		return nil, fmt.Errorf("failed to setup directories: %w", err)
	}

	logger, logFile, err := logging.NewLogger(layout.LauncherLogPath(cfg.RootDir, time.Now()), cfg.Level())
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)

	return func() {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}, nil
}
