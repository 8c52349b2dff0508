package service

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/entity"
	pkgconfig "earnings-call-engine/pkg/config"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/pgvector/pgvector-go"
)

const fakeDimension = 64

func testConfig() *config.Config {
	return &config.Config{
		App: pkgconfig.App{Name: "test"},
		Gemini: config.Gemini{
			GenerationModel: "test-model",
		},
		RAG: config.RAG{
			ChunkMaxChars:     200,
			ChunkOverlapChars: 40,
			EmbedBatchSize:    4,
			ContextK:          4,
			SearchDefaultK:    8,
		},
		Report: config.Report{
			CacheTTL:                time.Minute,
			MalformedAlertThreshold: 2,
		},
	}
}

const sampleTranscript = `Operator: Good afternoon and welcome to the call.

CEO: Revenue grew strongly this quarter. Cloud growth accelerated and AI revenue doubled.

CFO: Our full year outlook is unchanged. We expect operating margin expansion despite a depreciation headwind.

CFO: Currency headwind and macro headwinds remain risks. Regulatory risk is rising.

Question-and-Answer Session

Analyst: Can you elaborate on the guidance outlook for subscriptions growth?

CEO: We see subscriptions growth continuing. Competition remains intense.`

// memStore is an in-memory stand-in for Postgres shared by the fake repositories.
type memStore struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]entity.Document
	chunks  map[uuid.UUID]entity.Chunk
	reports map[dto.ReportKey]entity.Report
}

func newMemStore() *memStore {
	return &memStore{
		docs:    make(map[uuid.UUID]entity.Document),
		chunks:  make(map[uuid.UUID]entity.Chunk),
		reports: make(map[dto.ReportKey]entity.Report),
	}
}

type memDocumentRepo struct{ s *memStore }

func (r *memDocumentRepo) CreateWithChunks(_ context.Context, doc *entity.Document, chunks []entity.Chunk) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.Ticker == doc.Ticker && d.Quarter == doc.Quarter {
			return repository.ErrDocumentExists
		}
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	r.s.docs[doc.ID] = *doc
	for _, c := range chunks {
		c.DocumentID = doc.ID
		r.s.chunks[c.ID] = c
	}
	return nil
}

func (r *memDocumentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *memDocumentRepo) FindByTickerQuarter(_ context.Context, ticker, quarter string) (*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.Ticker == ticker && d.Quarter == quarter {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func (r *memDocumentRepo) FindAll(_ context.Context) ([]entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	docs := make([]entity.Document, 0, len(r.s.docs))
	for _, d := range r.s.docs {
		d.RawText = ""
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Ticker != docs[j].Ticker {
			return docs[i].Ticker < docs[j].Ticker
		}
		return docs[i].Quarter < docs[j].Quarter
	})
	return docs, nil
}

type memChunkRepo struct {
	s *memStore

	updateErr error
	createErr error
	// beforeCreate runs inside CreateBatch before the uniqueness check.
	beforeCreate func()
}

func sortChunks(chunks []entity.Chunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Section != chunks[j].Section {
			return chunks[i].Section < chunks[j].Section
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
}

func (r *memChunkRepo) CreateBatch(_ context.Context, chunks []entity.Chunk) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	if r.createErr != nil {
		return r.createErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range chunks {
		for _, existing := range r.s.chunks {
			if existing.DocumentID == c.DocumentID && existing.Section == c.Section && existing.ChunkIndex == c.ChunkIndex {
				return repository.ErrUniqueConflict
			}
		}
	}
	for _, c := range chunks {
		r.s.chunks[c.ID] = c
	}
	return nil
}

func (r *memChunkRepo) FindByDocumentID(_ context.Context, documentID uuid.UUID) ([]entity.Chunk, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Chunk
	for _, c := range r.s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sortChunks(out)
	return out, nil
}

func (r *memChunkRepo) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error) {
	chunks, _ := r.FindByDocumentID(ctx, documentID)
	return len(chunks), nil
}

func (r *memChunkRepo) FindPendingEmbedding(ctx context.Context, documentID uuid.UUID, limit int) ([]entity.Chunk, error) {
	chunks, _ := r.FindByDocumentID(ctx, documentID)
	var out []entity.Chunk
	for _, c := range chunks {
		if c.Embedding == nil {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memChunkRepo) UpdateEmbeddings(_ context.Context, embeddings []repository.ChunkEmbedding) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range embeddings {
		c, ok := r.s.chunks[e.ChunkID]
		if !ok || c.Embedding != nil {
			continue
		}
		v := pgvector.NewVector(e.Vector)
		c.Embedding = &v
		r.s.chunks[e.ChunkID] = c
	}
	return nil
}

func (r *memChunkRepo) NearestNeighbors(_ context.Context, query []float32, k int, documentID *uuid.UUID) ([]entity.ScoredChunk, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.ScoredChunk
	for _, c := range r.s.chunks {
		if c.Embedding == nil {
			continue
		}
		if documentID != nil && c.DocumentID != *documentID {
			continue
		}
		out = append(out, entity.ScoredChunk{Chunk: c, Distance: cosineDistance(query, c.Embedding.Slice())})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		return a.ID.String() < b.ID.String()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (r *memChunkRepo) FindDocumentIDsWithPendingEmbedding(_ context.Context, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, c := range r.s.chunks {
		if c.Embedding == nil && !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			out = append(out, c.DocumentID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memReportRepo struct {
	s *memStore

	// beforeInsert runs inside CreateIfAbsent before the uniqueness check.
	beforeInsert func()
	inserts      atomic.Int32
}

func (r *memReportRepo) FindByKey(_ context.Context, key dto.ReportKey) (*entity.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.reports[key]
	if !ok {
		return nil, nil
	}
	return &rep, nil
}

func (r *memReportRepo) CreateIfAbsent(_ context.Context, report *entity.Report) (bool, error) {
	if r.beforeInsert != nil {
		r.beforeInsert()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := dto.ReportKey{Ticker: report.Ticker, Quarter: report.Quarter, PrevQuarter: report.PrevQuarter}
	if _, ok := r.s.reports[key]; ok {
		return false, nil
	}
	report.ID = uuid.New()
	r.s.reports[key] = *report
	r.inserts.Add(1)
	return true, nil
}

// hashEmbedder maps each lower-cased word to a bucket, giving overlapping texts close vectors.
type hashEmbedder struct {
	calls      atomic.Int32
	queryCalls atomic.Int32
	err        error
	dropOne    bool
}

func (e *hashEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, embedWords(t))
	}
	if e.dropOne && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return embedWords(text), nil
}

func embedWords(text string) []float32 {
	v := make([]float32, fakeDimension)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%fakeDimension]++
	}
	v[0] += 0.01
	return v
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// cannedGenerator returns the same text for every request.
type cannedGenerator struct {
	mu       sync.Mutex
	text     string
	resp     *dto.GenerationResponse
	err      error
	delay    time.Duration
	calls    atomic.Int32
	requests []*dto.GenerationRequest
}

func (g *cannedGenerator) GenerateContent(_ context.Context, req *dto.GenerationRequest) (*dto.GenerationResponse, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.resp != nil {
		return g.resp, nil
	}
	return dto.NewTextResponse(g.text), nil
}

func (g *cannedGenerator) lastRequest() *dto.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return nil
	}
	return g.requests[len(g.requests)-1]
}

type fakeEventRepo struct {
	mu         sync.Mutex
	published  []uuid.UUID
	queue      []*repository.EmbeddingEvent
	stale      []*repository.EmbeddingEvent
	minIdle    time.Duration
	readErr    error
	acked      []string
	publishErr error
}

func (r *fakeEventRepo) PublishDocumentIngested(_ context.Context, documentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publishErr != nil {
		return r.publishErr
	}
	r.published = append(r.published, documentID)
	return nil
}

func (r *fakeEventRepo) ReadNext(_ context.Context) (*repository.EmbeddingEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	if len(r.queue) == 0 {
		return nil, nil
	}
	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, nil
}

func (r *fakeEventRepo) ClaimStale(_ context.Context, minIdle time.Duration) (*repository.EmbeddingEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minIdle = minIdle
	if r.readErr != nil {
		return nil, r.readErr
	}
	if len(r.stale) == 0 {
		return nil, nil
	}
	ev := r.stale[0]
	r.stale = r.stale[1:]
	return ev, nil
}

func (r *fakeEventRepo) Ack(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked = append(r.acked, messageID)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) SendMessage(text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fakeSourceRepo struct {
	pages   map[string]string
	feed    *gofeed.Feed
	fetched []string
}

func (r *fakeSourceRepo) FetchPage(_ context.Context, url string) (string, error) {
	r.fetched = append(r.fetched, url)
	page, ok := r.pages[url]
	if !ok {
		return "", errors.New("unexpected status 404")
	}
	return page, nil
}

func (r *fakeSourceRepo) FetchFeed(_ context.Context, _ string) (*gofeed.Feed, error) {
	return r.feed, nil
}
