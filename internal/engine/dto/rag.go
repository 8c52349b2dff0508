package dto

import "github.com/google/uuid"

// Context roles.
const (
	RoleCurrent = "current"
	RolePrev    = "prev"
)

// ContextChunk is one piece of evidence handed to the generator.
type ContextChunk struct {
	Role       string    `json:"role"`
	Section    string    `json:"section"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkID    uuid.UUID `json:"chunk_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
}

// SearchRequest is the payload for a similarity search.
type SearchRequest struct {
	Query      string     `json:"query"`
	K          int        `json:"k"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Section    string    `json:"section"`
	Speaker    *string   `json:"speaker"`
	Text       string    `json:"text"`
	Distance   float64   `json:"distance"`
}

// SearchResponse is the response of a similarity search.
type SearchResponse struct {
	Query   string         `json:"query"`
	K       int            `json:"k"`
	Results []SearchResult `json:"results"`
}

// EmbedResponse summarizes an embedding run for one document.
type EmbedResponse struct {
	DocumentID     uuid.UUID `json:"document_id"`
	ChunksCreated  int       `json:"chunks_created"`
	ChunksEmbedded int       `json:"chunks_embedded"`
	TotalChunks    int       `json:"total_chunks"`
}

// EmbedDocumentEvent is published on the embedding stream after ingestion.
type EmbedDocumentEvent struct {
	DocumentID uuid.UUID `json:"document_id"`
}
