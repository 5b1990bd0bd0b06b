// Package metrics exposes Prometheus metrics and periodically samples
// table sizes from the document store.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm/schema"

	"skein/internal/core"
)

var tableCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "skein_table_estimated_count",
	Help: "Estimated record count for a table.",
}, []string{"table"})

var watchedTables = []schema.Tabler{
	core.Actor{},
	core.FollowEdge{},
	core.InboxActivity{},
	core.Post{},
	core.RemotePost{},
	core.Like{},
}

type Collector struct {
	Logger *slog.Logger
	DB     core.DB
}

func (c *Collector) Init(_ context.Context) error {
	c.Logger = c.Logger.With("component", "metrics.Collector")
	return nil
}

func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, tabler := range watchedTables {
				if err := c.collectTableEstimatedCount(tabler); err != nil {
					c.Logger.Warn("table count collection failed", "table", tabler.TableName(), "error", err)
				}
			}
		}
	}
}

func (c *Collector) collectTableEstimatedCount(tabler schema.Tabler) error {
	count, err := c.DB.EstimatedCount(tabler.TableName())
	if err != nil {
		return err
	}
	tableCount.WithLabelValues(tabler.TableName()).Set(float64(count))
	return nil
}
