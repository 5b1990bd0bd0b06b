// Package federation adapts the apub HTTP client into an injectable
// service with configuration-driven timeouts.
package federation

import (
	"context"

	"skein/internal/config"
	"skein/pkg/apub"
)

type Client struct {
	Config *config.Config

	*apub.Client
}

func (c *Client) Init(_ context.Context) error {
	cfg := *apub.DefaultConfig
	if c.Config.FetchTimeout > 0 {
		cfg.Timeout = c.Config.FetchTimeout
	}
	c.Client = apub.NewClient(&cfg)
	return nil
}

func (c *Client) Shutdown(_ context.Context) error {
	return c.Close()
}
