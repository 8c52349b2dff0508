package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Report caches one synthesized comparison report. PrevQuarter is "" when no previous
// quarter was requested, so the unique key also covers that case.
type Report struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Ticker          string         `gorm:"type:varchar(16);not null;uniqueIndex:uq_reports_key" json:"ticker"`
	Quarter         string         `gorm:"type:varchar(16);not null;uniqueIndex:uq_reports_key" json:"quarter"`
	PrevQuarter     string         `gorm:"type:varchar(16);not null;default:'';uniqueIndex:uq_reports_key" json:"prev_quarter"`
	ReportData      datatypes.JSON `gorm:"type:jsonb;not null" json:"report_data"`
	ContextChunkIDs pq.StringArray `gorm:"type:text[]" json:"context_chunk_ids"`
	Model           string         `gorm:"type:varchar(64)" json:"model"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Report model.
func (Report) TableName() string {
	return "reports"
}

// BeforeCreate assigns a random id when none was set.
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
