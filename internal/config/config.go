package config

import "time"

type Config struct {
	DatabaseURL string `flag:"database-url"`

	NATSURL  string `flag:"nats-url"`
	NATSInit bool   `flag:"nats-init"`

	Neo4jURI      string `flag:"neo4j-uri"`
	Neo4jUser     string `flag:"neo4j-user"`
	Neo4jPassword string `flag:"neo4j-password"`

	Domain string `flag:"domain"`

	FetchTimeout   time.Duration `flag:"fetch-timeout"`
	CacheTTL       time.Duration `flag:"cache-ttl"`
	TrendingWindow time.Duration `flag:"trending-window"`

	MetricsAddr string `flag:"metrics-addr"`
	LogLevel    string `flag:"log-level"`
}
