package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/pkg/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const streamReadBlock = 2 * time.Second

// ErrMalformedEvent is returned for stream messages whose payload cannot be decoded.
// Such messages are acknowledged so they are not redelivered.
var ErrMalformedEvent = errors.New("malformed embedding event")

// EmbeddingEvent is one message read from the embedding stream. Deliveries counts how many
// times the group handed it out; it is only set for reclaimed messages.
type EmbeddingEvent struct {
	MessageID  string
	DocumentID uuid.UUID
	Deliveries int64
}

// EmbeddingEventRepository announces documents that need embedding and hands them to workers.
type EmbeddingEventRepository interface {
	PublishDocumentIngested(ctx context.Context, documentID uuid.UUID) error
	// ReadNext blocks briefly for the next undelivered event. It returns nil, nil when idle.
	ReadNext(ctx context.Context) (*EmbeddingEvent, error)
	// ClaimStale takes over one message that has been pending longer than minIdle.
	// It returns nil, nil when there is none.
	ClaimStale(ctx context.Context, minIdle time.Duration) (*EmbeddingEvent, error)
	Ack(ctx context.Context, messageID string) error
}

// NewEmbeddingEventRepository publishes to the document embedding stream.
func NewEmbeddingEventRepository(client *redis.Client, maxLen int64) EmbeddingEventRepository {
	return &embeddingEventRepository{client: client, maxLen: maxLen}
}

type embeddingEventRepository struct {
	client *redis.Client
	maxLen int64
}

// PublishDocumentIngested adds one event to the stream.
func (r *embeddingEventRepository) PublishDocumentIngested(ctx context.Context, documentID uuid.UUID) error {
	payload, err := json.Marshal(dto.EmbedDocumentEvent{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("failed to marshal embedding event: %w", err)
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamDocumentEmbedding,
		Values: map[string]interface{}{"payload": payload},
		MaxLen: r.maxLen,
		Approx: true,
	}).Err()
}

// ReadNext reads one new message for this consumer group.
func (r *embeddingEventRepository) ReadNext(ctx context.Context) (*EmbeddingEvent, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamDocumentEmbedding, ">"},
		Count:    1,
		Block:    streamReadBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, err
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return r.decode(ctx, streams[0].Messages[0])
}

// ClaimStale reclaims the oldest message idle for at least minIdle, the way a crashed or
// failed consumer leaves it, and reports its delivery count.
func (r *embeddingEventRepository) ClaimStale(ctx context.Context, minIdle time.Duration) (*EmbeddingEvent, error) {
	msgs, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   common.RedisStreamDocumentEmbedding,
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer + "-retry",
		MinIdle:  minIdle,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim pending embedding event: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	event, err := r.decode(ctx, msgs[0])
	if err != nil {
		return nil, err
	}

	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: common.RedisStreamDocumentEmbedding,
		Group:  common.RedisStreamGroup,
		Start:  event.MessageID,
		End:    event.MessageID,
		Count:  1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending info: %w", err)
	}
	if len(pending) > 0 {
		event.Deliveries = pending[0].RetryCount
	}
	return event, nil
}

func (r *embeddingEventRepository) decode(ctx context.Context, message redis.XMessage) (*EmbeddingEvent, error) {
	raw, ok := message.Values["payload"].(string)
	if !ok {
		return nil, r.discard(ctx, message.ID, fmt.Errorf("%w: message %s has no payload field", ErrMalformedEvent, message.ID))
	}

	var event dto.EmbedDocumentEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil || event.DocumentID == uuid.Nil {
		return nil, r.discard(ctx, message.ID, fmt.Errorf("%w: message %s", ErrMalformedEvent, message.ID))
	}
	return &EmbeddingEvent{MessageID: message.ID, DocumentID: event.DocumentID}, nil
}

// discard acknowledges an undecodable message so it is not redelivered. A failed ack is
// reported alongside the cause.
func (r *embeddingEventRepository) discard(ctx context.Context, messageID string, cause error) error {
	if err := r.Ack(ctx, messageID); err != nil {
		return fmt.Errorf("%w (ack failed: %v)", cause, err)
	}
	return cause
}

// Ack acknowledges a processed message.
func (r *embeddingEventRepository) Ack(ctx context.Context, messageID string) error {
	return r.client.XAck(ctx, common.RedisStreamDocumentEmbedding, common.RedisStreamGroup, messageID).Err()
}

// NewNoopEmbeddingEventRepository is used when Redis is disabled.
func NewNoopEmbeddingEventRepository() EmbeddingEventRepository {
	return noopEmbeddingEventRepository{}
}

type noopEmbeddingEventRepository struct{}

func (noopEmbeddingEventRepository) PublishDocumentIngested(context.Context, uuid.UUID) error {
	return nil
}

func (noopEmbeddingEventRepository) ReadNext(context.Context) (*EmbeddingEvent, error) {
	return nil, nil
}

func (noopEmbeddingEventRepository) ClaimStale(context.Context, time.Duration) (*EmbeddingEvent, error) {
	return nil, nil
}

func (noopEmbeddingEventRepository) Ack(context.Context, string) error {
	return nil
}
