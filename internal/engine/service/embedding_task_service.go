package service

import (
	"context"
	"errors"
	"time"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/pkg/logger"
)

const (
	backfillDocumentLimit = 50
	defaultRetryMinIdle   = 5 * time.Minute
	defaultMaxDeliveries  = 3
)

// EmbeddingTaskService runs the embedding loop for the background worker.
type EmbeddingTaskService interface {
	// ProcessTask handles at most one event from the embedding stream.
	ProcessTask(ctx context.Context)
	// ProcessRetries reclaims at most one event that stayed pending too long.
	ProcessRetries(ctx context.Context)
	// RunBackfill embeds every document that still has chunks without vectors.
	RunBackfill(ctx context.Context)
}

// NewEmbeddingTaskService creates a new embedding task service.
func NewEmbeddingTaskService(
	cfg *config.Config,
	eventRepo repository.EmbeddingEventRepository,
	chunkRepo repository.ChunkRepository,
	embeddingService EmbeddingService,
	log *logger.Logger,
) EmbeddingTaskService {
	return &embeddingTaskService{
		cfg:              cfg,
		eventRepo:        eventRepo,
		chunkRepo:        chunkRepo,
		embeddingService: embeddingService,
		logger:           log,
	}
}

type embeddingTaskService struct {
	cfg              *config.Config
	eventRepo        repository.EmbeddingEventRepository
	chunkRepo        repository.ChunkRepository
	embeddingService EmbeddingService
	logger           *logger.Logger
}

func (s *embeddingTaskService) ProcessTask(ctx context.Context) {
	event, err := s.eventRepo.ReadNext(ctx)
	if err != nil {
		s.logger.Error("Failed to read embedding event", logger.ErrorField(err))
		return
	}
	if event == nil {
		return
	}

	s.logger.Info("Processing embedding event",
		logger.StringField("message_id", event.MessageID),
		logger.StringField("document_id", event.DocumentID.String()),
	)

	s.handle(ctx, event)
}

func (s *embeddingTaskService) ProcessRetries(ctx context.Context) {
	minIdle := s.cfg.Worker.RetryMinIdle
	if minIdle <= 0 {
		minIdle = defaultRetryMinIdle
	}
	event, err := s.eventRepo.ClaimStale(ctx, minIdle)
	if err != nil {
		s.logger.Error("Failed to claim pending embedding event", logger.ErrorField(err))
		return
	}
	if event == nil {
		s.logger.Debug("No stale embedding events")
		return
	}

	maxDeliveries := int64(s.cfg.Worker.MaxDeliveries)
	if maxDeliveries <= 0 {
		maxDeliveries = defaultMaxDeliveries
	}
	if event.Deliveries > maxDeliveries {
		// dropped from the stream; the backfill job still finds the unembedded chunks
		s.logger.Error("Embedding event exceeded delivery limit, dropping",
			logger.StringField("message_id", event.MessageID),
			logger.StringField("document_id", event.DocumentID.String()),
			logger.Field("deliveries", event.Deliveries),
		)
		s.ack(ctx, event.MessageID)
		return
	}

	s.logger.Info("Retrying embedding event",
		logger.StringField("message_id", event.MessageID),
		logger.Field("deliveries", event.Deliveries),
	)
	s.handle(ctx, event)
}

// handle runs the embedding loop for one event and acknowledges it unless it failed.
func (s *embeddingTaskService) handle(ctx context.Context, event *repository.EmbeddingEvent) {
	runCtx, cancel := s.withTimeout(ctx, s.cfg.Worker.StreamTimeout)
	defer cancel()

	_, err := s.embeddingService.EmbedDocument(runCtx, event.DocumentID, 0)
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		// left pending for ProcessRetries
		s.logger.Error("Embedding event failed",
			logger.ErrorField(err),
			logger.StringField("document_id", event.DocumentID.String()),
		)
		return
	}
	if err != nil {
		s.logger.Warn("Embedding event references a missing document", logger.StringField("document_id", event.DocumentID.String()))
	}
	s.ack(ctx, event.MessageID)
}

func (s *embeddingTaskService) ack(ctx context.Context, messageID string) {
	if err := s.eventRepo.Ack(ctx, messageID); err != nil {
		s.logger.Error("Failed to acknowledge embedding event", logger.ErrorField(err), logger.StringField("message_id", messageID))
	}
}

func (s *embeddingTaskService) RunBackfill(ctx context.Context) {
	runCtx, cancel := s.withTimeout(ctx, s.cfg.Worker.BackfillTimeout)
	defer cancel()

	ids, err := s.chunkRepo.FindDocumentIDsWithPendingEmbedding(runCtx, backfillDocumentLimit)
	if err != nil {
		s.logger.Error("Failed to find documents pending embedding", logger.ErrorField(err))
		return
	}
	if len(ids) == 0 {
		s.logger.Debug("No documents pending embedding")
		return
	}

	embedded := 0
	for _, id := range ids {
		resp, err := s.embeddingService.EmbedDocument(runCtx, id, 0)
		if err != nil {
			s.logger.Error("Backfill embedding failed", logger.ErrorField(err), logger.StringField("document_id", id.String()))
			if runCtx.Err() != nil {
				return
			}
			continue
		}
		embedded += resp.ChunksEmbedded
	}

	s.logger.Info("Embedding backfill finished",
		logger.IntField("documents", len(ids)),
		logger.IntField("chunks_embedded", embedded),
	)
}

func (s *embeddingTaskService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
