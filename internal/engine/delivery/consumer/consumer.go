package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/service"
	"earnings-call-engine/pkg/common"
	"earnings-call-engine/pkg/logger"
	"earnings-call-engine/pkg/utils"

	"github.com/robfig/cron/v3"
)

// RedisConsumer drives the embedding worker: a stream reader for new documents and a
// cron-scheduled backfill sweep.
type RedisConsumer struct {
	cfg                  *config.Config
	embeddingTaskService service.EmbeddingTaskService
	logger               *logger.Logger
	cronParser           cron.Parser
	stopChan             chan struct{}
	stopOnce             sync.Once
	wg                   sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(cfg *config.Config, embeddingTaskService service.EmbeddingTaskService, log *logger.Logger) *RedisConsumer {
	return &RedisConsumer{
		cfg:                  cfg,
		embeddingTaskService: embeddingTaskService,
		logger:               log,
		cronParser:           cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		stopChan:             make(chan struct{}),
	}
}

// Start registers the stream handler and, when a schedule is configured, the backfill job.
func (c *RedisConsumer) Start(ctx context.Context) error {
	c.logger.Info("Redis consumer started")
	c.RegisterStreamHandler(ctx, c.embeddingTaskService.ProcessTask, common.RedisStreamDocumentEmbedding, c.cfg.Worker.StreamTimeout)
	if c.cfg.Worker.RetryInterval > 0 {
		c.RegisterTickerHandler(ctx, c.embeddingTaskService.ProcessRetries, c.cfg.Worker.RetryInterval, c.cfg.Worker.StreamTimeout, common.RedisStreamDocumentEmbedding+"-retry")
	}

	if c.cfg.Worker.BackfillSchedule == "" {
		return nil
	}
	return c.RegisterCronHandler(ctx, c.embeddingTaskService.RunBackfill, c.cfg.Worker.BackfillSchedule, "embedding-backfill")
}

// RegisterStreamHandler calls fn in a loop until the context ends or Stop is called.
func (c *RedisConsumer) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.StringField("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stream handler stopping due to context cancellation", logger.StringField("stream", streamName))
				return
			case <-c.stopChan:
				c.logger.Info("Stream handler stopping", logger.StringField("stream", streamName))
				return
			default:
				runCtx, cancel := withOptionalTimeout(ctx, timeout)
				fn(runCtx)
				cancel()
			}
		}
	})
}

// RegisterTickerHandler calls fn every interval until the context ends or Stop is called.
func (c *RedisConsumer) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.StringField("name", name),
		logger.Field("interval", interval),
		logger.Field("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runCtx, cancel := withOptionalTimeout(ctx, timeout)
				fn(runCtx)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.StringField("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.StringField("name", name))
				return
			}
		}
	})
}

// RegisterCronHandler runs fn on the given cron schedule. Runs never overlap.
func (c *RedisConsumer) RegisterCronHandler(ctx context.Context, fn func(ctx context.Context), spec, name string) error {
	schedule, err := c.cronParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}

	c.logger.Info("Registering cron handler", logger.StringField("name", name), logger.StringField("schedule", spec))

	runner := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	runner.Schedule(schedule, cron.FuncJob(func() { fn(ctx) }))
	runner.Start()

	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
		case <-c.stopChan:
		}
		<-runner.Stop().Done()
		c.logger.Info("Cron handler stopped", logger.StringField("name", name))
	})
	return nil
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
