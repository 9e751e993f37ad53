package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"mclaunch/internal/config"
)

func main() {
	cmd := &cli.Command{
		Name:    "mclaunch",
		Usage:   "Minecraft launcher core",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to configuration yaml file",
				Value: config.DefaultFile,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "download",
				Usage: "Install a version with its libraries, natives and assets",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "version",
						Usage: "Version id to install (default: latest of the channel)",
					},
					&cli.StringFlag{
						Name:  "channel",
						Usage: "Release channel: release or snapshot",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runDownload(ctx, cmd.String("config"), cmd.String("version"), cmd.String("channel"))
				},
			},
			{
				Name:  "launch",
				Usage: "Start an installed version and supervise it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "version",
						Usage:    "Installed version id to start",
						Required: true,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runLaunch(ctx, cmd.String("config"), cmd.String("version"))
				},
			},
			{
				Name:  "versions",
				Usage: "List installed or available versions",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "List the versions of the remote manifest",
					},
					&cli.StringFlag{
						Name:  "channel",
						Usage: "Filter remote versions by type (empty for all)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return listVersions(ctx, cmd.String("config"), cmd.Bool("remote"), cmd.String("channel"))
				},
			},
			{
				Name:  "failures",
				Usage: "Show the per-file failures of the last download",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return listFailures(cmd.String("config"))
				},
			},
			{
				Name:  "verify",
				Usage: "Check an installed package against its receipt",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "version",
						Usage:    "Installed version id",
						Required: true,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return verifyVersion(cmd.String("config"), cmd.String("version"))
				},
			},
			{
				Name:  "identity",
				Usage: "Show or create the offline player profile",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return showIdentity(cmd.String("config"))
				},
			},
			{
				Name:  "check",
				Usage: "Verify configuration, connectivity and the Java runtime",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCheck(ctx, cmd.String("config"))
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\ninterrupted")
			os.Exit(130)
		}
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		slog.Error("CLI error", "error", err)
		os.Exit(exitCode(err))
	}
}
