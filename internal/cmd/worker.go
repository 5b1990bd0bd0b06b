package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skein/internal/cache"
	"skein/internal/cmd/flags"
	"skein/internal/core"
	"skein/internal/delivering"
	"skein/internal/federation"
	"skein/internal/following"
	"skein/internal/graph"
	"skein/internal/ingesting"
	"skein/internal/mirroring"
	"skein/internal/nats"
	"skein/internal/persistence"
	"skein/internal/resolving"
)

var workerCmd = &cli.Command{
	Name:  "worker",
	Usage: "Consume verified inbound activities and run them through the inbox processor",
	Flags: []cli.Flag{
		flags.DatabaseURL,
		flags.NATSUrl,
		flags.InitNATS,
		flags.Neo4jURI,
		flags.Neo4jUser,
		flags.Neo4jPassword,
		flags.Domain,
		flags.FetchTimeout,
		flags.CacheTTL,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			nats.Provide(),
			persistence.Provide(),
			pal.Provide(&cache.Cache{}),
			pal.Provide[core.GraphStore](&graph.Store{}),
			pal.Provide[core.Fetcher](&federation.Client{}),
			pal.Provide[core.ActorDirectory](&resolving.Directory{}),
			pal.Provide[core.RelationshipStore](&following.Store{}),
			pal.Provide[core.PostMirror](&mirroring.Mirror{}),
			pal.Provide[core.DeliveryQueue](&delivering.Queue{}),
			pal.Provide(&ingesting.Processor{}),
			pal.Provide(&ingesting.Worker{}),
		)
	},
}
