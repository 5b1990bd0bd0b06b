package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skein/internal/cmd/flags"
	"skein/internal/core"
	"skein/internal/graph"
	"skein/internal/persistence"
	"skein/internal/recommending"
)

var feedCmd = &cli.Command{
	Name:      "feed",
	Usage:     "Print the discovery feed for an actor",
	ArgsUsage: "<actor-uri>",
	Flags: []cli.Flag{
		flags.DatabaseURL,
		flags.Neo4jURI,
		flags.Neo4jUser,
		flags.Neo4jPassword,
		flags.TrendingWindow,
		flags.Page,
		flags.Limit,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		actorURI := c.Args().First()
		if actorURI == "" {
			return fmt.Errorf("actor URI argument is required")
		}

		return run(ctx, c,
			persistence.Provide(),
			pal.Provide[core.GraphStore](&graph.Store{}),
			pal.Provide(&recommending.Engine{}),
			pal.Provide(&feedRunner{
				actorURI: actorURI,
				page:     int(c.Int("page")),
				limit:    int(c.Int("limit")),
			}),
		)
	},
}

type feedRunner struct {
	Engine *recommending.Engine

	actorURI    string
	page, limit int
}

func (f *feedRunner) Run(ctx context.Context) error {
	feed, err := f.Engine.DiscoverFeed(ctx, f.actorURI, f.page, f.limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(feed)
}
