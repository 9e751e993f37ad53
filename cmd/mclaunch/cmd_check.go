package main

import (
	"context"
	"os"

	"mclaunch/internal/check"
	"mclaunch/internal/platform"
)

func runCheck(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	return check.Run(ctx, cfg, platform.Current(), os.Stdout)
}
