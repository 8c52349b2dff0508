package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"earnings-call-engine/internal/entity"
	"earnings-call-engine/pkg/utils"

	"github.com/google/uuid"
)

const maxLabelLength = 16

// RawText accepts either a JSON string or an object of the form {"value": "..."}.
type RawText string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Value *string `json:"value"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		if wrapped.Value == nil {
			return errors.New(`raw_text object must contain a "value" string`)
		}
		*r = RawText(*wrapped.Value)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("raw_text must be a string or an object with a value field")
	}
	*r = RawText(s)
	return nil
}

// IngestRequest is the payload for ingesting a transcript.
type IngestRequest struct {
	Ticker   string  `json:"ticker" form:"ticker"`
	Quarter  string  `json:"quarter" form:"quarter"`
	CallDate string  `json:"call_date,omitempty" form:"call_date"`
	RawText  RawText `json:"raw_text"`
}

// Normalize upper-cases and trims the labels in place.
func (r *IngestRequest) Normalize() {
	r.Ticker = utils.NormalizeLabel(r.Ticker)
	r.Quarter = utils.NormalizeLabel(r.Quarter)
}

// Validate checks labels and text. Call after Normalize.
func (r *IngestRequest) Validate() error {
	if err := validateLabel("ticker", r.Ticker); err != nil {
		return err
	}
	if err := validateLabel("quarter", r.Quarter); err != nil {
		return err
	}
	if _, err := utils.ParseDate(r.CallDate); err != nil {
		return err
	}
	if strings.TrimSpace(string(r.RawText)) == "" {
		return errors.New("raw_text must not be empty")
	}
	return nil
}

// IngestURLRequest asks the service to fetch and ingest an HTML transcript page.
type IngestURLRequest struct {
	Ticker   string `json:"ticker"`
	Quarter  string `json:"quarter"`
	CallDate string `json:"call_date,omitempty"`
	URL      string `json:"url"`
}

// IngestFileRequest carries an uploaded transcript file and its form fields.
type IngestFileRequest struct {
	Ticker   string `form:"ticker"`
	Quarter  string `form:"quarter"`
	CallDate string `form:"call_date"`
	Filename string `form:"-"`
	Content  []byte `form:"-"`
}

// IngestFeedRequest asks the service to discover transcripts in an RSS/Atom feed.
type IngestFeedRequest struct {
	FeedURL  string `json:"feed_url"`
	Ticker   string `json:"ticker"`
	MaxItems int    `json:"max_items,omitempty"`
}

// IngestFeedResult reports what happened to one feed item.
type IngestFeedResult struct {
	Title      string     `json:"title"`
	Link       string     `json:"link"`
	Quarter    string     `json:"quarter,omitempty"`
	Status     string     `json:"status"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Feed item statuses.
const (
	FeedItemIngested = "ingested"
	FeedItemExists   = "exists"
	FeedItemSkipped  = "skipped"
	FeedItemFailed   = "failed"
)

// DocumentResponse is the API representation of a document.
type DocumentResponse struct {
	ID         uuid.UUID `json:"id"`
	Ticker     string    `json:"ticker"`
	Quarter    string    `json:"quarter"`
	CallDate   *string   `json:"call_date"`
	RawText    string    `json:"raw_text,omitempty"`
	ChunkCount *int      `json:"chunk_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDocumentResponse maps an entity to its API form.
func NewDocumentResponse(doc *entity.Document, includeText bool) *DocumentResponse {
	resp := &DocumentResponse{
		ID:        doc.ID,
		Ticker:    doc.Ticker,
		Quarter:   doc.Quarter,
		CreatedAt: doc.CreatedAt,
	}
	if doc.CallDate != nil {
		d := utils.FormatDate(doc.CallDate)
		resp.CallDate = &d
	}
	if includeText {
		resp.RawText = doc.RawText
	}
	return resp
}

// ChunkResponse is the API representation of a chunk.
type ChunkResponse struct {
	ID           uuid.UUID `json:"id"`
	DocumentID   uuid.UUID `json:"document_id"`
	Section      string    `json:"section"`
	Speaker      *string   `json:"speaker"`
	ChunkIndex   int       `json:"chunk_index"`
	Text         string    `json:"text"`
	HasEmbedding bool      `json:"has_embedding"`
}

// NewChunkResponse maps an entity to its API form.
func NewChunkResponse(c *entity.Chunk) ChunkResponse {
	return ChunkResponse{
		ID:           c.ID,
		DocumentID:   c.DocumentID,
		Section:      c.Section,
		Speaker:      c.Speaker,
		ChunkIndex:   c.ChunkIndex,
		Text:         c.Text,
		HasEmbedding: c.HasEmbedding(),
	}
}

func validateLabel(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len([]rune(value)) > maxLabelLength {
		return fmt.Errorf("%s must be at most %d characters", name, maxLabelLength)
	}
	return nil
}
