package main

import (
	"context"
	"fmt"
	"os"

	"mclaunch/internal/install"
	"mclaunch/internal/list"
	"mclaunch/internal/manifest"
	"mclaunch/internal/resolve"
)

func listVersions(ctx context.Context, configPath string, remote bool, channel string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if !remote {
		return list.Installed(cfg.RootDir, os.Stdout)
	}

	if channel != "" {
		if err := resolve.ValidateChannel(channel); err != nil {
			return err
		}
	}
	client := manifest.NewClient(cfg.RootDir, cfg.Endpoints.Manifest, nil)
	return list.Remote(ctx, client, cfg.RootDir, channel, os.Stdout)
}

func listFailures(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	return list.Failures(cfg.RootDir, os.Stdout)
}

func verifyVersion(configPath, version string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	receipt, err := install.Verify(cfg.RootDir, version)
	if err != nil {
		return fmt.Errorf("verification of %s failed: %w", version, err)
	}
	fmt.Fprintf(os.Stdout, "%s: OK (blake3 %s, %d failed files at install)\n",
		version, receipt.PackageBlake3, len(receipt.Failures))
	return nil
}
