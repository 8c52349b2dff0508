package repository

import (
	"context"
	"errors"
	"fmt"

	"earnings-call-engine/internal/entity"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ChunkEmbedding pairs a chunk id with its vector.
type ChunkEmbedding struct {
	ChunkID uuid.UUID
	Vector  []float32
}

// ChunkRepository defines the interface for chunk data operations.
type ChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []entity.Chunk) error
	FindByDocumentID(ctx context.Context, documentID uuid.UUID) ([]entity.Chunk, error)
	CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error)
	FindPendingEmbedding(ctx context.Context, documentID uuid.UUID, limit int) ([]entity.Chunk, error)
	UpdateEmbeddings(ctx context.Context, embeddings []ChunkEmbedding) error
	NearestNeighbors(ctx context.Context, query []float32, k int, documentID *uuid.UUID) ([]entity.ScoredChunk, error)
	FindDocumentIDsWithPendingEmbedding(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// NewChunkRepository creates a new GORM-based chunk repository.
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

type chunkRepository struct {
	db *gorm.DB
}

// CreateBatch inserts chunks for an existing document. A concurrent writer that already
// chunked the document surfaces as ErrUniqueConflict.
func (r *chunkRepository) CreateBatch(ctx context.Context, chunks []entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(chunks, chunkInsertBatchSize).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: chunks of document %s", ErrUniqueConflict, chunks[0].DocumentID)
	}
	return err
}

// FindByDocumentID lists a document's chunks ordered by section and index.
func (r *chunkRepository) FindByDocumentID(ctx context.Context, documentID uuid.UUID) ([]entity.Chunk, error) {
	var chunks []entity.Chunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("section ASC").
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// CountByDocumentID counts a document's chunks.
func (r *chunkRepository) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Chunk{}).
		Where("document_id = ?", documentID).
		Count(&count).Error
	return int(count), err
}

// FindPendingEmbedding returns up to limit chunks that still lack an embedding,
// ordered by section and index so runs are deterministic and resumable.
func (r *chunkRepository) FindPendingEmbedding(ctx context.Context, documentID uuid.UUID, limit int) ([]entity.Chunk, error) {
	var chunks []entity.Chunk
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND embedding IS NULL", documentID).
		Order("section ASC").
		Order("chunk_index ASC").
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpdateEmbeddings stores a batch of vectors in one transaction. Chunks that were
// embedded concurrently keep their first vector.
func (r *chunkRepository) UpdateEmbeddings(ctx context.Context, embeddings []ChunkEmbedding) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range embeddings {
			err := tx.Model(&entity.Chunk{}).
				Where("id = ? AND embedding IS NULL", e.ChunkID).
				Update("embedding", pgvector.NewVector(e.Vector)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// NearestNeighbors returns the k embedded chunks closest to query by cosine distance,
// optionally restricted to one document. Ties fall back to section, index and id.
func (r *chunkRepository) NearestNeighbors(ctx context.Context, query []float32, k int, documentID *uuid.UUID) ([]entity.ScoredChunk, error) {
	vec := pgvector.NewVector(query)

	q := r.db.WithContext(ctx).
		Model(&entity.Chunk{}).
		Select("chunks.*, chunks.embedding <=> ? AS distance", vec).
		Where("chunks.embedding IS NOT NULL")
	if documentID != nil {
		q = q.Where("chunks.document_id = ?", *documentID)
	}

	var rows []entity.ScoredChunk
	err := q.Order("distance ASC").
		Order("chunks.section ASC").
		Order("chunks.chunk_index ASC").
		Order("chunks.id ASC").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindDocumentIDsWithPendingEmbedding lists documents that still have unembedded chunks.
func (r *chunkRepository) FindDocumentIDsWithPendingEmbedding(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.Chunk{}).
		Distinct("document_id").
		Where("embedding IS NULL").
		Limit(limit).
		Pluck("document_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
