package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"mclaunch/internal/config"
	"mclaunch/internal/download"
	"mclaunch/internal/event"
	"mclaunch/internal/manifest"
	"mclaunch/internal/platform"
	"mclaunch/internal/transfer"
)

func newOrchestrator(cfg *config.Config, caps platform.Capabilities, source download.Source, sink event.Sink) *download.Orchestrator {
	opts := []download.Option{
		download.WithChannel(cfg.ReleaseChannel()),
		download.WithSink(sink),
		download.WithResourcesURL(cfg.Endpoints.Resources),
		download.WithExtraLibraries(cfg.ExtraLibraries),
		download.WithFatalLibraries(cfg.Download.FatalLibraries),
		download.WithLimits(cfg.LibraryConcurrency(), cfg.AssetConcurrency()),
		download.WithTransferOptions(
			transfer.WithAttempts(cfg.RetryAttempts()),
			transfer.WithIdleTimeout(cfg.IdleTimeout()),
		),
	}
	if cfg.Java.Download && cfg.Java.Path == "" {
		opts = append(opts, download.WithRuntime(cfg.RuntimeName(), cfg.RuntimeURL(caps.Name)))
	}
	return download.New(cfg.RootDir, caps, source, opts...)
}

func runDownload(ctx context.Context, configPath, version, channel string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if channel != "" {
		cfg.Channel = channel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// The root stays untouched, log file included, until the manifest
	// endpoint answers.
	source := manifest.NewClient(cfg.RootDir, cfg.Endpoints.Manifest, nil)
	if err := source.Probe(ctx); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	closeLog, err := prepareRoot(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	renderer := &downloadRenderer{w: os.Stderr}
	o := newOrchestrator(cfg, platform.Current(), source, renderer.sink)

	slog.Info("Download started", "root", cfg.RootDir, "version", version, "channel", cfg.ReleaseChannel())
	id, err := o.Run(ctx, version)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	slog.Info("Download completed", "version", id)
	return nil
}
