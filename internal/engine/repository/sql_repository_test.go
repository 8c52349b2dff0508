package repository

import (
	"context"
	"strings"
	"testing"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type capturedStatement struct {
	sql  string
	vars []interface{}
}

// dryRunDB renders statements without a server and records them in order.
func dryRunDB(t *testing.T) (*gorm.DB, *[]capturedStatement) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	var statements []capturedStatement
	capture := func(tx *gorm.DB) {
		statements = append(statements, capturedStatement{
			sql:  tx.Statement.SQL.String(),
			vars: append([]interface{}(nil), tx.Statement.Vars...),
		})
	}
	require.NoError(t, db.Callback().Row().After("gorm:row").Register("test:capture_row", capture))
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture_query", capture))
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture_create", capture))
	return db, &statements
}

func lastStatement(t *testing.T, statements *[]capturedStatement) capturedStatement {
	t.Helper()
	require.NotEmpty(t, *statements)
	return (*statements)[len(*statements)-1]
}

func assertInOrder(t *testing.T, sql string, fragments ...string) {
	t.Helper()
	pos := 0
	for _, f := range fragments {
		i := strings.Index(sql[pos:], f)
		if !assert.GreaterOrEqual(t, i, 0, "missing %q after offset %d in %s", f, pos, sql) {
			return
		}
		pos += i + len(f)
	}
}

func TestNearestNeighborsQuery_ScopedToDocument(t *testing.T) {
	db, statements := dryRunDB(t)
	repo := NewChunkRepository(db)
	docID := uuid.New()

	_, _ = repo.NearestNeighbors(context.Background(), []float32{0.1, 0.2}, 5, &docID)

	stmt := lastStatement(t, statements)
	assertInOrder(t, stmt.sql,
		"SELECT chunks.*, chunks.embedding <=> $1 AS distance",
		`FROM "chunks"`,
		"WHERE chunks.embedding IS NOT NULL AND chunks.document_id = $2",
		"ORDER BY distance ASC,chunks.section ASC,chunks.chunk_index ASC,chunks.id ASC",
		"LIMIT",
	)
	assert.Contains(t, stmt.vars, docID)
	assert.Contains(t, stmt.vars, 5)
}

func TestNearestNeighborsQuery_AllDocuments(t *testing.T) {
	db, statements := dryRunDB(t)
	repo := NewChunkRepository(db)

	_, _ = repo.NearestNeighbors(context.Background(), []float32{0.1, 0.2}, 3, nil)

	stmt := lastStatement(t, statements)
	assert.Contains(t, stmt.sql, "WHERE chunks.embedding IS NOT NULL ORDER BY distance ASC")
	assert.NotContains(t, stmt.sql, "document_id")
	assert.Contains(t, stmt.vars, 3)
}

func TestFindPendingEmbeddingQuery(t *testing.T) {
	db, statements := dryRunDB(t)
	repo := NewChunkRepository(db)
	docID := uuid.New()

	_, err := repo.FindPendingEmbedding(context.Background(), docID, 32)
	require.NoError(t, err)

	stmt := lastStatement(t, statements)
	assertInOrder(t, stmt.sql,
		`FROM "chunks"`,
		"WHERE document_id = $1 AND embedding IS NULL",
		"ORDER BY section ASC,chunk_index ASC",
		"LIMIT",
	)
}

func TestCreateIfAbsentQuery(t *testing.T) {
	db, statements := dryRunDB(t)
	repo := NewReportRepository(db)

	_, err := repo.CreateIfAbsent(context.Background(), &entity.Report{
		Ticker:     "GOOG",
		Quarter:    "2025_Q3",
		ReportData: []byte(`{}`),
	})
	require.NoError(t, err)

	stmt := lastStatement(t, statements)
	assertInOrder(t, stmt.sql,
		`INSERT INTO "reports"`,
		`ON CONFLICT ("ticker","quarter","prev_quarter") DO NOTHING`,
	)
}

func TestFindReportByKeyQuery(t *testing.T) {
	db, statements := dryRunDB(t)
	repo := NewReportRepository(db)

	_, _ = repo.FindByKey(context.Background(), dto.ReportKey{Ticker: "GOOG", Quarter: "2025_Q3"})

	stmt := lastStatement(t, statements)
	assert.Contains(t, stmt.sql, "WHERE ticker = $1 AND quarter = $2 AND prev_quarter = $3")
	assert.Equal(t, []interface{}{"GOOG", "2025_Q3", ""}, stmt.vars[:3])
}
