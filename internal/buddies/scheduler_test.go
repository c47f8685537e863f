package buddies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

func TestSchedulerExpiresAndCollects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newMemoryFixture(t)
	log := logger.NewNop()
	m := NewManager(f.repo, f.attendance, nil, log)

	eventID := f.event(t, time.Now().Add(-time.Minute))
	a, b := f.attendee(t, eventID), f.attendee(t, eventID)
	match, err := m.Request(ctx, a, b, eventID, 50)
	require.NoError(t, err)

	collector := NewStatsCollector(f.repo, log)
	NewScheduler(m, collector, 10*time.Millisecond, 10*time.Millisecond, log).Start(ctx)

	require.Eventually(t, func() bool {
		got, err := m.Get(ctx, a, match.ID)
		return err == nil && got.Status == StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	stats, err := collector.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(0), stats.Pending)
}
