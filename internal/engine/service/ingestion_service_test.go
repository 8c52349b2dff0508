package service

import (
	"context"
	"errors"
	"testing"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/pkg/common"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest_StoresDocumentAndChunks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	doc, err := e.ingestion.Ingest(ctx, &dto.IngestRequest{
		Ticker:   " goog ",
		Quarter:  "2025_q3",
		CallDate: "2025-10-28",
		RawText:  dto.RawText(sampleTranscript),
	})
	require.NoError(t, err)

	assert.Equal(t, "GOOG", doc.Ticker)
	assert.Equal(t, "2025_Q3", doc.Quarter)
	require.NotNil(t, doc.CallDate)
	assert.Equal(t, "2025-10-28", *doc.CallDate)
	require.NotNil(t, doc.ChunkCount)
	assert.Greater(t, *doc.ChunkCount, 1)
	assert.Equal(t, []uuid.UUID{doc.ID}, e.events.published)

	chunks, err := e.ingestion.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, *doc.ChunkCount)

	sections := map[string]bool{}
	for i, c := range chunks {
		sections[c.Section] = true
		assert.False(t, c.HasEmbedding)
		if i > 0 && chunks[i-1].Section == c.Section {
			assert.Equal(t, chunks[i-1].ChunkIndex+1, c.ChunkIndex)
		}
	}
	assert.True(t, sections[common.SectionPreparedRemarks])
	assert.True(t, sections[common.SectionQA])
}

func TestIngest_Duplicate(t *testing.T) {
	e := newTestEngine(t)
	e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)

	_, err := e.ingestion.Ingest(context.Background(), &dto.IngestRequest{
		Ticker:  "goog",
		Quarter: "2025_Q3",
		RawText: "other text",
	})
	assert.ErrorIs(t, err, repository.ErrDocumentExists)
	assert.Len(t, e.events.published, 1)
}

func TestIngest_Invalid(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		req  dto.IngestRequest
	}{
		{"missing ticker", dto.IngestRequest{Quarter: "2025_Q3", RawText: "text"}},
		{"missing quarter", dto.IngestRequest{Ticker: "GOOG", RawText: "text"}},
		{"blank text", dto.IngestRequest{Ticker: "GOOG", Quarter: "2025_Q3", RawText: "  \n "}},
		{"bad date", dto.IngestRequest{Ticker: "GOOG", Quarter: "2025_Q3", CallDate: "28/10/2025", RawText: "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := e.ingestion.Ingest(context.Background(), &req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Empty(t, e.store.docs)
}

func TestIngest_PublishFailureDoesNotFail(t *testing.T) {
	e := newTestEngine(t)
	e.events.publishErr = errors.New("redis down")

	id := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestGetDocument(t *testing.T) {
	e := newTestEngine(t)
	id := e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)

	doc, err := e.ingestion.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript, doc.RawText)
	require.NotNil(t, doc.ChunkCount)

	_, err = e.ingestion.GetDocument(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = e.ingestion.ListChunks(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestListDocuments_Ordered(t *testing.T) {
	e := newTestEngine(t)
	e.ingest(t, "MSFT", "2025_Q1", sampleTranscript)
	e.ingest(t, "GOOG", "2025_Q3", sampleTranscript)
	e.ingest(t, "GOOG", "2025_Q2", sampleTranscript)

	docs, err := e.ingestion.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "GOOG", docs[0].Ticker)
	assert.Equal(t, "2025_Q2", docs[0].Quarter)
	assert.Equal(t, "2025_Q3", docs[1].Quarter)
	assert.Equal(t, "MSFT", docs[2].Ticker)
	assert.Empty(t, docs[0].RawText)
}
