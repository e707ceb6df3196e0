package repository

import (
	"context"
	"os"
	"strings"
	"testing"

	"luxestore-backend/internal/domains/importer/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestUpdateProgressGuards(t *testing.T) {
	repo := NewJobRepository(testPool(t))
	ctx := context.Background()

	job := &model.ImportJob{
		Type:     model.TypeKeywordImport,
		Supplier: "cj",
		Params:   model.Params{Keyword: "bag", Count: 10},
	}
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.MarkRunning(ctx, job.ID))
	require.NoError(t, repo.UpdateProgress(ctx, job.ID, 10, 8, 2, 50))

	// A write that would move processed backwards is rejected and the row
	// keeps its counters.
	err := repo.UpdateProgress(ctx, job.ID, 5, 5, 0, 25)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrJobFinalized)
	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Processed)
	assert.Equal(t, 8, stored.Imported)

	require.NoError(t, repo.MarkCompleted(ctx, job.ID, &model.Result{}))
	assert.ErrorIs(t, repo.UpdateProgress(ctx, job.ID, 20, 20, 0, 100), model.ErrJobFinalized)
}

func TestMarkFailedTruncatesLongMessages(t *testing.T) {
	repo := NewJobRepository(testPool(t))
	ctx := context.Background()

	job := &model.ImportJob{
		Type:     model.TypeKeywordImport,
		Supplier: "cj",
		Params:   model.Params{Keyword: "bag", Count: 10},
	}
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.MarkRunning(ctx, job.ID))
	require.NoError(t, repo.MarkFailed(ctx, job.ID, strings.Repeat("x", 1200)))

	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Error, maxErrorLen)
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "boom", truncateError("boom"))
	assert.Len(t, truncateError(strings.Repeat("x", maxErrorLen+100)), maxErrorLen)
	assert.Equal(t, strings.Repeat("y", maxErrorLen), truncateError(strings.Repeat("y", maxErrorLen)))
}
