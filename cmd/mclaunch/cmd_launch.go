package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"mclaunch/internal/config"
	"mclaunch/internal/identity"
	"mclaunch/internal/install"
	"mclaunch/internal/jvm"
	"mclaunch/internal/launch"
	"mclaunch/internal/layout"
	"mclaunch/internal/platform"
	"mclaunch/internal/remote"
	"mclaunch/internal/supervisor"
)

const (
	defaultWidth  = 854
	defaultHeight = 480
)

func buildProfile(cfg *config.Config, caps platform.Capabilities, version string, player *identity.Profile) (launch.Profile, error) {
	extra, err := install.ExtraLibraries(cfg.ExtraLibraries)
	if err != nil {
		return launch.Profile{}, fmt.Errorf("failed to resolve extra libraries: %w", err)
	}

	window := &launch.Window{
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
	}
	if !window.Fullscreen {
		if window.Width == 0 {
			window.Width = defaultWidth
		}
		if window.Height == 0 {
			window.Height = defaultHeight
		}
	}

	return launch.Profile{
		Root:           cfg.RootDir,
		VersionID:      version,
		GameDir:        cfg.GameDir,
		JavaPath:       jvm.ExecutablePath(cfg.RootDir, cfg.Java.Path, cfg.RuntimeName(), caps),
		MinMemory:      cfg.MinMemory(),
		MaxMemory:      cfg.MaxMemory(),
		JVMArgs:        cfg.JVMArgs,
		MinJavaMajor:   cfg.Java.MinMajor,
		Window:         window,
		Identity:       *player,
		ExtraLibraries: extra,
		Caps:           caps,
	}, nil
}

func supervisorOptions(ctx context.Context, cfg *config.Config) ([]supervisor.Option, error) {
	if !cfg.CrashUpload.Enabled {
		return nil, nil
	}
	store, err := remote.NewS3(ctx, cfg.CrashUpload.Bucket, cfg.CrashUpload.Region,
		cfg.CrashUpload.Prefix, cfg.CrashUpload.Endpoint, cfg.CrashUploadRetryAttempts())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 backend: %w", err)
	}
	return []supervisor.Option{supervisor.WithUploader(store)}, nil
}

func runLaunch(ctx context.Context, configPath, version string) error {
	cfg, closeLog, err := setup(configPath)
	if err != nil {
		return err
	}
	defer closeLog()

	caps := platform.Current()
	player, err := identity.LoadOrCreate(cfg.RootDir, cfg.PlayerName())
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	profile, err := buildProfile(cfg, caps, version, player)
	if err != nil {
		return err
	}
	argv, err := launch.Plan(ctx, profile, jvm.Validate)
	if err != nil {
		return fmt.Errorf("failed to prepare launch: %w", err)
	}

	opts, err := supervisorOptions(ctx, cfg)
	if err != nil {
		return err
	}
	renderer := &gameRenderer{stdout: os.Stdout, stderr: os.Stderr}
	sup := supervisor.New(cfg.RootDir, renderer.sink, opts...)

	gameDir := profile.GameDirectory()
	if err := layout.SetupDirectories(gameDir); err != nil {
		return fmt.Errorf("failed to create game directory: %w", err)
	}
	h, err := sup.Launch(ctx, argv, gameDir)
	if err != nil {
		return err
	}
	slog.Info("Game launched", "version", version, "pid", h.Pid(), "player", player.Name)

	code := h.Wait()
	if path := h.CrashLog(); path != "" {
		fmt.Fprintf(os.Stderr, "crash log written to %s\n", path)
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}
