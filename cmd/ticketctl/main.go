// Command ticketctl is the operator tool of the ticket engine: it mints
// payment callback tokens, bootstraps the schema and inspects or revives
// buried background jobs.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/iliyamo/cinema-ticket-engine/internal/config"
	"github.com/iliyamo/cinema-ticket-engine/internal/database"
	"github.com/iliyamo/cinema-ticket-engine/internal/jobs"
	"github.com/iliyamo/cinema-ticket-engine/internal/utils"
)

func main() {
	app := &cli.App{
		Name:  "ticketctl",
		Usage: "Operate the ticket engine",
		Before: func(*cli.Context) error {
			// .env is optional, as for the server
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		},
		Commands: []*cli.Command{
			tokenCommand(),
			migrateCommand(),
			jobsCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log := zerolog.New(os.Stderr)
		log.Fatal().Err(err).Msg("ticketctl")
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a PAYMENT token for the payment collaborator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Required: true},
			&cli.StringFlag{Name: "subject", Value: "payment-provider"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			tok, err := utils.NewPaymentToken(c.String("secret"), c.String("subject"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, tok.Token)
			fmt.Fprintf(c.App.ErrWriter, "expires %s\n", tok.Exp.Format(time.RFC3339))
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create missing MySQL tables",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.DriverMySQL {
				return fmt.Errorf("STORE_DRIVER is %q, nothing to migrate", cfg.StoreDriver)
			}
			db, err := database.Open(c.Context, cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(c.Context, db); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "schema is up to date")
			return nil
		},
	}
}

func jobsCommand() *cli.Command {
	prefix := &cli.StringFlag{Name: "prefix", EnvVars: []string{"JOB_QUEUE_PREFIX"}, Value: "jobs"}
	return &cli.Command{
		Name:  "jobs",
		Usage: "inspect the Redis job queue",
		Flags: []cli.Flag{prefix},
		Subcommands: []*cli.Command{
			{
				Name:  "dead",
				Usage: "list buried tasks, most recent first",
				Action: func(c *cli.Context) error {
					q, closeFn, err := openQueue(c)
					if err != nil {
						return err
					}
					defer closeFn()
					tasks, err := q.Dead(c.Context)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tTASK\tATTEMPT\tERROR")
					for _, t := range tasks {
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t, t.Attempt, t.LastError)
					}
					return w.Flush()
				},
			},
			{
				Name:      "revive",
				Usage:     "move a buried task back onto the queue",
				ArgsUsage: "<task_id>",
				Action: func(c *cli.Context) error {
					id, err := uuid.Parse(c.Args().First())
					if err != nil {
						return fmt.Errorf("invalid task id %q: %w", c.Args().First(), err)
					}
					q, closeFn, err := openQueue(c)
					if err != nil {
						return err
					}
					defer closeFn()
					t, err := q.Revive(c.Context, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "revived %s\n", t)
					return nil
				},
			},
			{
				Name:      "inventory",
				Usage:     "queue ticket generation for a show",
				ArgsUsage: "<show_id>",
				Action: func(c *cli.Context) error {
					showID, err := strconv.ParseUint(c.Args().First(), 10, 64)
					if err != nil || showID == 0 {
						return fmt.Errorf("invalid show id %q", c.Args().First())
					}
					q, closeFn, err := openQueue(c)
					if err != nil {
						return err
					}
					defer closeFn()
					if err := jobs.NewScheduler(q).ScheduleInventory(c.Context, showID); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "queued inventory generation for show %d\n", showID)
					return nil
				},
			},
		},
	}
}

func openQueue(c *cli.Context) (*jobs.RedisQueue, func(), error) {
	rdb, err := config.NewRedisClient(c.Context)
	if err != nil {
		return nil, nil, err
	}
	q := jobs.NewRedisQueue(rdb, c.String("prefix"), 30*time.Second)
	return q, func() { _ = rdb.Close() }, nil
}
