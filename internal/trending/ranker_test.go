package trending

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRepo(t *testing.T) *storage.GormRepository {
	t.Helper()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func insert(t *testing.T, repo storage.Repository, published time.Time, views, likes int64, trending bool) string {
	t.Helper()
	id := uuid.NewString()
	ext := "newsapi_" + id
	require.NoError(t, repo.Insert(context.Background(), &storage.Article{
		ID:          id,
		Title:       "title " + id,
		Description: "d",
		Content:     "c",
		Author:      "a",
		SourceName:  "s",
		URL:         "https://example.com/" + id,
		Category:    collector.Technology,
		PublishedAt: published.UTC(),
		ViewCount:   views,
		LikeCount:   likes,
		Trending:    trending,
		ExternalID:  &ext,
	}))
	return id
}

func TestRecomputeFlagsTopTwentyInWindow(t *testing.T) {
	repo := openRepo(t)
	now := time.Now()

	recent := map[string]int64{}
	for i := 1; i <= 25; i++ {
		id := insert(t, repo, now.Add(-time.Duration(i)*10*time.Minute), int64(i), 0, false)
		recent[id] = int64(i)
	}
	for i := 0; i < 3; i++ {
		insert(t, repo, now.Add(-30*time.Hour), 1000, 0, false)
	}
	staleFlag := insert(t, repo, now.Add(-48*time.Hour), 5000, 0, true)

	r := New(repo, 0, 0)
	n, err := r.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	flagged, err := repo.Find(context.Background(), storage.Query{Filter: storage.Filter{Trending: storage.Bool(true)}})
	require.NoError(t, err)
	require.Len(t, flagged, 20)
	for _, a := range flagged {
		views, ok := recent[a.ID]
		require.True(t, ok, "article outside window flagged: %s", a.ID)
		assert.GreaterOrEqual(t, views, int64(6), "low-view article flagged")
	}

	stale, err := repo.FindOne(context.Background(), storage.Filter{IDs: []string{staleFlag}})
	require.NoError(t, err)
	assert.False(t, stale.Trending)
}

func TestRecomputeIsStable(t *testing.T) {
	repo := openRepo(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		insert(t, repo, now.Add(-time.Hour), int64(i), 0, false)
	}

	r := New(repo, 0, 3)
	for i := 0; i < 2; i++ {
		n, err := r.Recompute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	flagged, err := repo.Find(context.Background(), storage.Query{Filter: storage.Filter{Trending: storage.Bool(true)}})
	require.NoError(t, err)
	assert.Len(t, flagged, 3)
}

func TestRecomputeBreaksTiesByLikes(t *testing.T) {
	repo := openRepo(t)
	now := time.Now()
	insert(t, repo, now.Add(-time.Hour), 10, 1, false)
	liked := insert(t, repo, now.Add(-2*time.Hour), 10, 9, false)

	_, err := New(repo, 0, 1).Recompute(context.Background())
	require.NoError(t, err)

	flagged, err := repo.Find(context.Background(), storage.Query{Filter: storage.Filter{Trending: storage.Bool(true)}})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, liked, flagged[0].ID)
}

func TestRecomputeEmptyWindowClearsAll(t *testing.T) {
	repo := openRepo(t)
	old := insert(t, repo, time.Now().Add(-72*time.Hour), 99, 0, true)

	n, err := New(repo, 0, 0).Recompute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	a, err := repo.FindOne(context.Background(), storage.Filter{IDs: []string{old}})
	require.NoError(t, err)
	assert.False(t, a.Trending, "article %s should no longer be trending", old)
}

func TestRecomputeReportsStoreFailure(t *testing.T) {
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = New(repo, 0, 0).Recompute(context.Background())
	assert.True(t, storage.IsKind(err, storage.ConnectionFailure), "got %v", err)
}
