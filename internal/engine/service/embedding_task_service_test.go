package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"earnings-call-engine/internal/engine/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskService(e *testEngine) EmbeddingTaskService {
	return NewEmbeddingTaskService(e.cfg, e.events, e.chunks, e.embedding, e.log)
}

func TestProcessTask_EmbedsAndAcks(t *testing.T) {
	e := newTestEngine(t)
	id := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	e.events.queue = []*repository.EmbeddingEvent{{MessageID: "1-0", DocumentID: id}}

	newTaskService(e).ProcessTask(context.Background())

	assert.Equal(t, []string{"1-0"}, e.events.acked)
	pending, _ := e.chunks.FindPendingEmbedding(context.Background(), id, 100)
	assert.Empty(t, pending)
}

func TestProcessTask_LeavesFailedEventPending(t *testing.T) {
	e := newTestEngine(t)
	id := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	e.events.queue = []*repository.EmbeddingEvent{{MessageID: "1-0", DocumentID: id}}
	e.embedder.err = errors.New("quota exceeded")

	newTaskService(e).ProcessTask(context.Background())

	assert.Empty(t, e.events.acked)
}

func TestProcessTask_AcksMissingDocument(t *testing.T) {
	e := newTestEngine(t)
	e.events.queue = []*repository.EmbeddingEvent{{MessageID: "2-0", DocumentID: uuid.New()}}

	newTaskService(e).ProcessTask(context.Background())

	assert.Equal(t, []string{"2-0"}, e.events.acked)
}

func TestProcessTask_Idle(t *testing.T) {
	e := newTestEngine(t)
	svc := newTaskService(e)

	svc.ProcessTask(context.Background())
	e.events.readErr = errors.New("connection refused")
	svc.ProcessTask(context.Background())

	assert.Empty(t, e.events.acked)
	assert.Equal(t, int32(0), e.embedder.calls.Load())
}

func TestProcessRetries_ReembedsStaleEvent(t *testing.T) {
	e := newTestEngine(t)
	id := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	e.events.stale = []*repository.EmbeddingEvent{{MessageID: "3-0", DocumentID: id, Deliveries: 2}}
	e.cfg.Worker.RetryMinIdle = time.Minute

	newTaskService(e).ProcessRetries(context.Background())

	assert.Equal(t, time.Minute, e.events.minIdle)
	assert.Equal(t, []string{"3-0"}, e.events.acked)
	pending, _ := e.chunks.FindPendingEmbedding(context.Background(), id, 100)
	assert.Empty(t, pending)
}

func TestProcessRetries_StillFailingStaysPending(t *testing.T) {
	e := newTestEngine(t)
	id := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	e.events.stale = []*repository.EmbeddingEvent{{MessageID: "3-0", DocumentID: id, Deliveries: 2}}
	e.embedder.err = errors.New("quota exceeded")

	newTaskService(e).ProcessRetries(context.Background())

	assert.Empty(t, e.events.acked)
	assert.Equal(t, defaultRetryMinIdle, e.events.minIdle)
}

func TestProcessRetries_DropsAfterDeliveryLimit(t *testing.T) {
	e := newTestEngine(t)
	id := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	e.cfg.Worker.MaxDeliveries = 3
	e.events.stale = []*repository.EmbeddingEvent{{MessageID: "4-0", DocumentID: id, Deliveries: 4}}

	newTaskService(e).ProcessRetries(context.Background())

	assert.Equal(t, []string{"4-0"}, e.events.acked)
	assert.Equal(t, int32(0), e.embedder.calls.Load())

	// the backfill still picks the document up
	ids, err := e.chunks.FindDocumentIDsWithPendingEmbedding(context.Background(), 10)
	require.NoError(t, err)
	assert.Contains(t, ids, id)
}

func TestProcessRetries_Idle(t *testing.T) {
	e := newTestEngine(t)

	newTaskService(e).ProcessRetries(context.Background())

	assert.Empty(t, e.events.acked)
	assert.Equal(t, int32(0), e.embedder.calls.Load())
}

func TestRunBackfill(t *testing.T) {
	e := newTestEngine(t)
	a := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	b := e.ingest(t, "GOOG", "2025_Q2", sampleTranscript)
	done := e.ingestAndEmbed(t, "MSFT", "2025_Q1", sampleTranscript)
	callsBefore := e.embedder.calls.Load()

	newTaskService(e).RunBackfill(context.Background())

	for _, id := range []uuid.UUID{a, b, done} {
		pending, err := e.chunks.FindPendingEmbedding(context.Background(), id, 100)
		require.NoError(t, err)
		assert.Empty(t, pending)
	}
	assert.Greater(t, e.embedder.calls.Load(), callsBefore)

	ids, err := e.chunks.FindDocumentIDsWithPendingEmbedding(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
