package flags

import (
	"fmt"
	"slices"
	"time"

	libnats "github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var DatabaseURL = &cli.StringFlag{
	Name:    "database-url",
	Usage:   "Postgres connection string for the document store",
	Sources: cli.EnvVars("DATABASE_URL"),
}

var NATSUrl = &cli.StringFlag{
	Name:    "nats-url",
	Aliases: []string{"n"},
	Usage:   "The URL of the NATS server",
	Value:   libnats.DefaultURL,
	Sources: cli.EnvVars("NATS_URL"),
}

var InitNATS = &cli.BoolFlag{
	Name:    "nats-init",
	Usage:   "Initialize NATS: create the stream, consumers and KV bucket",
	Value:   false,
	Sources: cli.EnvVars("NATS_INIT"),
}

var Neo4jURI = &cli.StringFlag{
	Name:    "neo4j-uri",
	Usage:   "Bolt URI of the graph store",
	Value:   "bolt://localhost:7687",
	Sources: cli.EnvVars("NEO4J_URI"),
}

var Neo4jUser = &cli.StringFlag{
	Name:    "neo4j-user",
	Usage:   "Graph store username",
	Value:   "neo4j",
	Sources: cli.EnvVars("NEO4J_USER"),
}

var Neo4jPassword = &cli.StringFlag{
	Name:    "neo4j-password",
	Usage:   "Graph store password",
	Sources: cli.EnvVars("NEO4J_PASSWORD"),
}

var Domain = &cli.StringFlag{
	Name:    "domain",
	Usage:   "Local deployment domain, used to mint canonical URIs",
	Sources: cli.EnvVars("SKEIN_DOMAIN"),
}

var FetchTimeout = &cli.DurationFlag{
	Name:    "fetch-timeout",
	Usage:   "Upper bound for remote actor/object fetches",
	Value:   10 * time.Second,
	Sources: cli.EnvVars("FETCH_TIMEOUT"),
}

var CacheTTL = &cli.DurationFlag{
	Name:    "cache-ttl",
	Usage:   "TTL for cached follower/following lists and counts",
	Value:   30 * time.Second,
	Sources: cli.EnvVars("CACHE_TTL"),
}

var TrendingWindow = &cli.DurationFlag{
	Name:    "trending-window",
	Usage:   "Rolling window for the trending recommendation query",
	Value:   24 * time.Hour,
	Sources: cli.EnvVars("TRENDING_WINDOW"),
}

var MetricsAddr = &cli.StringFlag{
	Name:    "metrics-addr",
	Usage:   "Listen address of the metrics HTTP server",
	Value:   ":8080",
	Sources: cli.EnvVars("METRICS_ADDR"),
}

var Page = &cli.IntFlag{
	Name:  "page",
	Usage: "Result page, starting at 1",
	Value: 1,
}

var Limit = &cli.IntFlag{
	Name:  "limit",
	Usage: "Maximum results per page",
	Value: 20,
}

var LogLevel = &cli.StringFlag{
	Name:    "log-level",
	Aliases: []string{"l"},
	Usage:   "The level of the logs",
	Value:   "info",
	Validator: func(value string) error {
		if !slices.Contains(validLogLevels, value) {
			return fmt.Errorf("invalid log level: %s, allowed values are: %s", value, validLogLevels)
		}
		return nil
	},
	Sources: cli.EnvVars("LOG_LEVEL"),
}
