package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("scheduler failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "scheduler",
		Usage: "Book rooms and employees for events without double booking.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before reading the environment"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
		},
		Action: serve,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Apply migrations and serve the HTTP API (default).",
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			storage, err := openStorage(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStorage(storage, logger)

			logger.Info("migrations applied")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Apply migrations, load reference data and optionally create an administrator.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "admin-email", Usage: "email of the administrator to create"},
			&cli.StringFlag{Name: "admin-password", Usage: "password of the administrator to create"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			storage, err := openStorage(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStorage(storage, logger)

			return seed(c.Context, storage, c.String("admin-email"), c.String("admin-password"), logger)
		},
	}
}
