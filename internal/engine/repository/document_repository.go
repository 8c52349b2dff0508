package repository

import (
	"context"
	"errors"

	"earnings-call-engine/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const chunkInsertBatchSize = 100

// DocumentRepository defines the interface for document data operations.
type DocumentRepository interface {
	CreateWithChunks(ctx context.Context, doc *entity.Document, chunks []entity.Chunk) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	FindByTickerQuarter(ctx context.Context, ticker, quarter string) (*entity.Document, error)
	FindAll(ctx context.Context) ([]entity.Document, error)
}

// NewDocumentRepository creates a new GORM-based document repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

type documentRepository struct {
	db *gorm.DB
}

// CreateWithChunks inserts the document and its chunks in one transaction.
func (r *documentRepository) CreateWithChunks(ctx context.Context, doc *entity.Document, chunks []entity.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Chunks").Create(doc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDocumentExists
			}
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		for i := range chunks {
			chunks[i].DocumentID = doc.ID
		}
		return tx.CreateInBatches(chunks, chunkInsertBatchSize).Error
	})
}

// FindByID retrieves a document by its ID. Returns nil when it does not exist.
func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	var doc entity.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// FindByTickerQuarter retrieves a document by its natural key. Labels must already be normalized.
func (r *documentRepository) FindByTickerQuarter(ctx context.Context, ticker, quarter string) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND quarter = ?", ticker, quarter).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// FindAll lists documents ordered by ticker and quarter, without their raw text.
func (r *documentRepository) FindAll(ctx context.Context) ([]entity.Document, error) {
	var docs []entity.Document
	err := r.db.WithContext(ctx).
		Select("id", "ticker", "quarter", "call_date", "created_at").
		Order("ticker ASC").
		Order("quarter ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
