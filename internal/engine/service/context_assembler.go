package service

import (
	"context"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/entity"
	"earnings-call-engine/pkg/logger"

	"github.com/google/uuid"
)

const defaultContextK = 4

type theme struct {
	name    string
	queries []string
}

// reportThemes drives evidence retrieval; order is the order chunks appear in the prompt.
var reportThemes = []theme{
	{name: "guidance", queries: []string{"guidance outlook", "revenue outlook", "EPS guidance", "full year outlook"}},
	{name: "growth_drivers", queries: []string{"growth drivers", "AI revenue", "cloud growth", "subscriptions growth"}},
	{name: "risks", queries: []string{"macro headwinds", "regulatory risk", "currency headwind", "competition"}},
	{name: "margin_dynamics", queries: []string{"operating margin", "margin expansion", "depreciation headwind", "cost of revenues"}},
	{name: "qa_pressure_points", queries: []string{"analyst concerns", "follow up question", "can you elaborate", "clarify risk"}},
}

// ContextAssembler gathers the evidence chunks for a quarter comparison.
type ContextAssembler interface {
	Assemble(ctx context.Context, current, prev *entity.Document, k int) ([]dto.ContextChunk, error)
}

// NewContextAssembler creates a new context assembler.
func NewContextAssembler(retriever RetrieverService, log *logger.Logger) ContextAssembler {
	return &contextAssembler{
		retriever: retriever,
		logger:    log,
	}
}

type contextAssembler struct {
	retriever RetrieverService
	logger    *logger.Logger
}

type contextKey struct {
	role    string
	chunkID uuid.UUID
}

// Assemble runs every theme query against the current document and, when given, the previous
// one. A chunk appears at most once per role, in first-retrieved order.
func (a *contextAssembler) Assemble(ctx context.Context, current, prev *entity.Document, k int) ([]dto.ContextChunk, error) {
	if k <= 0 {
		k = defaultContextK
	}

	seen := make(map[contextKey]struct{})
	var out []dto.ContextChunk

	add := func(chunks []entity.ScoredChunk, role string) {
		for _, c := range chunks {
			key := contextKey{role: role, chunkID: c.ID}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, dto.ContextChunk{
				Role:       role,
				Section:    c.Section,
				DocumentID: c.DocumentID,
				ChunkID:    c.ID,
				ChunkIndex: c.ChunkIndex,
				Text:       c.Text,
			})
		}
	}

	for _, t := range reportThemes {
		for _, q := range t.queries {
			chunks, err := a.retriever.Search(ctx, q, k, &current.ID)
			if err != nil {
				return nil, err
			}
			add(chunks, dto.RoleCurrent)

			if prev == nil {
				continue
			}
			chunks, err = a.retriever.Search(ctx, q, k, &prev.ID)
			if err != nil {
				return nil, err
			}
			add(chunks, dto.RolePrev)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoEvidence
	}

	a.logger.Debug("Assembled report context",
		logger.StringField("document_id", current.ID.String()),
		logger.IntField("chunks", len(out)),
	)
	return out, nil
}
