package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skein/internal/cmd/flags"
	"skein/internal/metrics"
	"skein/internal/persistence"
)

var metricsServerCmd = &cli.Command{
	Name:  "metrics-server",
	Usage: "Serve Prometheus metrics and collect table sizes",
	Flags: []cli.Flag{
		flags.DatabaseURL,
		flags.MetricsAddr,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			persistence.Provide(),
			pal.Provide(&metrics.Collector{}),
			pal.Provide(&metrics.Server{}),
		)
	},
}
