package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is one ingested earnings-call transcript. Immutable after ingestion.
type Document struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Ticker    string     `gorm:"type:varchar(16);not null;uniqueIndex:uq_documents_ticker_quarter" json:"ticker"`
	Quarter   string     `gorm:"type:varchar(16);not null;uniqueIndex:uq_documents_ticker_quarter" json:"quarter"`
	CallDate  *time.Time `gorm:"type:date" json:"call_date"`
	RawText   string     `gorm:"type:text;not null" json:"raw_text"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Chunks []Chunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for the Document model.
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns a random id when none was set.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
