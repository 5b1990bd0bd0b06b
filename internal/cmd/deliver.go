package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skein/internal/cmd/flags"
	"skein/internal/core"
	"skein/internal/delivering"
	"skein/internal/federation"
	"skein/internal/nats"
)

var deliverCmd = &cli.Command{
	Name:  "deliver",
	Usage: "Drain the outbound delivery queue and POST payloads to remote inboxes",
	Flags: []cli.Flag{
		flags.NATSUrl,
		flags.InitNATS,
		flags.FetchTimeout,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			nats.Provide(),
			pal.Provide[core.Fetcher](&federation.Client{}),
			pal.Provide(&delivering.Worker{}),
		)
	},
}
