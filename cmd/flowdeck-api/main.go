package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowdeck/pkg/analyzer"
	"github.com/dukex/flowdeck/pkg/cmd"
	"github.com/dukex/flowdeck/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowdeck-api",
		Usage:                 "Edit and run flowcharts",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL (file://, redis:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:     "analyzer-url",
				Usage:    "Base URL of the python analysis backend",
				Required: true,
				Sources:  cli.EnvVars("ANALYZER_URL"),
			},
			&cli.StringFlag{
				Name:    "backup-retention",
				Usage:   "Cron schedule for pruning old backups, empty disables",
				Sources: cli.EnvVars("BACKUP_RETENTION"),
			},
			&cli.IntFlag{
				Name:    "backup-keep",
				Usage:   "Backups kept per flowchart by the retention sweep",
				Value:   10,
				Sources: cli.EnvVars("BACKUP_KEEP"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowdeck API")

			persistence := cmd.MustPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				analyzer.NewHTTPAnalyzer(command.String("analyzer-url")),
			)

			if schedule := command.String("backup-retention"); schedule != "" {
				if err := api.sessions.StartBackupRetention(schedule, command.Int("backup-keep")); err != nil {
					return err
				}
			}

			defer func() {
				if err := api.sessions.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close sessions", "error", err)
				}
			}()

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
