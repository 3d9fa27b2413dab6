package main

import (
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	log.Init(logrus.InfoLevel)

	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	postgresURLFlag := &cli.StringFlag{
		Name:     "postgres-url",
		EnvVars:  []string{"POSTGRES_URL"},
		Required: true,
	}

	return &cli.App{
		Name:  "raillinkctl",
		Usage: "Operate the RailLink ticket service",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "complete departed tickets now",
				Flags: []cli.Flag{
					postgresURLFlag,
					&cli.StringFlag{
						Name:  "user-id",
						Usage: "only sync tickets of this user",
					},
				},
				Action: func(c *cli.Context) error {
					h, err := NewHandler(c.String("postgres-url"))
					if err != nil {
						return err
					}
					defer h.Close()

					completed, err := h.Sync(c.Context, c.String("user-id"))
					if err != nil {
						return err
					}

					_, err = fmt.Fprintf(c.App.Writer, "completed %d tickets\n", completed)
					return err
				},
			},
			{
				Name:  "request-sync",
				Usage: "send a SyncTicketStatuses command to the running service",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "redis-addr",
						EnvVars:  []string{"REDIS_ADDR"},
						Required: true,
					},
					&cli.StringFlag{
						Name:  "user-id",
						Usage: "only sync tickets of this user",
					},
				},
				Action: func(c *cli.Context) error {
					return RequestSync(c.Context, c.String("redis-addr"), c.String("user-id"))
				},
			},
			{
				Name:  "migrate-read-model",
				Usage: "rebuild the ops read model from the data lake",
				Flags: []cli.Flag{postgresURLFlag},
				Action: func(c *cli.Context) error {
					h, err := NewHandler(c.String("postgres-url"))
					if err != nil {
						return err
					}
					defer h.Close()

					migrated, err := h.MigrateReadModel(c.Context)
					if err != nil {
						return err
					}

					_, err = fmt.Fprintf(c.App.Writer, "migrated %d events\n", migrated)
					return err
				},
			},
		},
	}
}
