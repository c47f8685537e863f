// internal/buddies/stats.go

package buddies

import (
	"context"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

// StatsCollector refreshes the buddy gauges from the store.
type StatsCollector struct {
	repo Repository
	log  *logger.Logger
}

func NewStatsCollector(repo Repository, log *logger.Logger) *StatsCollector {
	return &StatsCollector{repo: repo, log: log.With("component", "buddy_stats")}
}

// Collect reads current counts and publishes them as gauges.
func (c *StatsCollector) Collect(ctx context.Context) (*Stats, error) {
	stats, err := c.repo.Stats(ctx, uuid.NullUUID{})
	if err != nil {
		return nil, err
	}
	recordStats(stats)
	c.log.Debug("Buddy stats refreshed",
		"pending", stats.Pending, "accepted", stats.Accepted, "acceptance_rate", stats.AcceptanceRate)
	return stats, nil
}
