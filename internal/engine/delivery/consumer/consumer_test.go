package consumer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTaskService struct {
	tasks     atomic.Int32
	retries   atomic.Int32
	backfills atomic.Int32
}

func (s *countingTaskService) ProcessTask(ctx context.Context) {
	s.tasks.Add(1)
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Millisecond):
	}
}

func (s *countingTaskService) ProcessRetries(context.Context) {
	s.retries.Add(1)
}

func (s *countingTaskService) RunBackfill(context.Context) {
	s.backfills.Add(1)
}

func TestRedisConsumer_StreamLoopStops(t *testing.T) {
	svc := &countingTaskService{}
	c := NewRedisConsumer(&config.Config{Worker: config.Worker{StreamTimeout: time.Second}}, svc, logger.NewNop())

	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return svc.tasks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	c.Stop()
	stopped := svc.tasks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, svc.tasks.Load())
	assert.Equal(t, int32(0), svc.backfills.Load())
	assert.Equal(t, int32(0), svc.retries.Load())
}

func TestRedisConsumer_RetryTicker(t *testing.T) {
	svc := &countingTaskService{}
	cfg := &config.Config{Worker: config.Worker{StreamTimeout: time.Second, RetryInterval: 10 * time.Millisecond}}
	c := NewRedisConsumer(cfg, svc, logger.NewNop())

	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return svc.retries.Load() >= 2 }, time.Second, 5*time.Millisecond)

	c.Stop()
	stopped := svc.retries.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, svc.retries.Load())
}

func TestRedisConsumer_CronBackfill(t *testing.T) {
	svc := &countingTaskService{}
	c := NewRedisConsumer(&config.Config{}, svc, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.RegisterCronHandler(ctx, svc.RunBackfill, "@every 1s", "backfill"))

	assert.Eventually(t, func() bool { return svc.backfills.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	c.Stop()
}

func TestRedisConsumer_InvalidSchedule(t *testing.T) {
	svc := &countingTaskService{}
	c := NewRedisConsumer(&config.Config{Worker: config.Worker{BackfillSchedule: "every now and then"}}, svc, logger.NewNop())

	err := c.Start(context.Background())
	assert.Error(t, err)
	c.Stop()
}
