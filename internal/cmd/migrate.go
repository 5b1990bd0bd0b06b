package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skein/internal/cmd/flags"
	"skein/internal/persistence"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Manage document store schema migrations",
	Commands: []*cli.Command{
		{
			Name:  "up",
			Usage: "Apply all pending migrations",
			Flags: []cli.Flag{
				flags.DatabaseURL,
			},
			Action: func(ctx context.Context, c *cli.Command) error {
				return run(ctx, c,
					persistence.Provide(),
					pal.Provide(&persistence.Migrator{}),
					pal.Provide(&persistence.MigrationUpRunner{}),
				)
			},
		},
		{
			Name:  "down",
			Usage: "Roll back the most recent migration",
			Flags: []cli.Flag{
				flags.DatabaseURL,
			},
			Action: func(ctx context.Context, c *cli.Command) error {
				return run(ctx, c,
					persistence.Provide(),
					pal.Provide(&persistence.Migrator{}),
					pal.Provide(&persistence.MigrationDownRunner{}),
				)
			},
		},
	},
}
