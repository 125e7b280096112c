package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkRepository_FindAbsent(t *testing.T) {
	repo := NewWatermarkRepository(newTestDB(t))

	wm, err := repo.Find(context.Background(), "node-x")
	require.NoError(t, err)
	assert.Nil(t, wm)
}

func TestWatermarkRepository_AdvanceNeverRegresses(t *testing.T) {
	repo := NewWatermarkRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Advance(ctx, "node-a", 10, now))

	wm, err := repo.Find(ctx, "node-a")
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, int64(10), wm.LastAppliedSequenceID)

	// Lower and equal sequences are ignored.
	require.NoError(t, repo.Advance(ctx, "node-a", 5, now))
	require.NoError(t, repo.Advance(ctx, "node-a", 10, now))

	wm, err = repo.Find(ctx, "node-a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), wm.LastAppliedSequenceID)

	require.NoError(t, repo.Advance(ctx, "node-a", 25, now))

	wm, err = repo.Find(ctx, "node-a")
	require.NoError(t, err)
	assert.Equal(t, int64(25), wm.LastAppliedSequenceID)
}

func TestWatermarkRepository_PinOverwrites(t *testing.T) {
	repo := NewWatermarkRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Advance(ctx, "node-a", 50, now))
	require.NoError(t, repo.Pin(ctx, "node-a", 7, now))

	wm, err := repo.Find(ctx, "node-a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), wm.LastAppliedSequenceID)
}
