package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"canter/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "feed.db")
	require.NoError(t, Migrate(path))

	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedFixture loads a small graph: viewer 1 follows rider 2; rider 3
// is a stranger with one fresh, one mid-engagement and one old viral
// post; post 5 is hidden.
func seedFixture(t *testing.T, store *Store) {
	t.Helper()

	exec := func(query string, args ...interface{}) {
		_, err := store.db.Exec(query, args...)
		require.NoError(t, err)
	}

	for id, handle := range map[int64]string{1: "viewer", 2: "rider", 3: "stranger"} {
		exec("INSERT INTO users (id, handle, created_at) VALUES (?, ?, ?)", id, handle, testBase.Unix())
	}
	exec("INSERT INTO follows (follower_id, following_id, created_at) VALUES (1, 2, ?)", testBase.Unix())

	posts := []struct {
		id, author int64
		age        time.Duration
		likes      int64
		comments   int64
		hidden     int
	}{
		{id: 1, author: 1, age: 3 * time.Hour},
		{id: 2, author: 2, age: 1 * time.Hour},
		{id: 3, author: 3, age: 2 * time.Hour, likes: 10, comments: 2},
		{id: 4, author: 3, age: 30 * time.Hour, likes: 100},
		{id: 5, author: 2, age: 30 * time.Minute, hidden: 1},
		{id: 6, author: 3, age: 90 * time.Minute, likes: 50},
	}
	for _, p := range posts {
		exec(`INSERT INTO posts (id, author_id, created_at, hidden, like_count, comment_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.id, p.author, testBase.Add(-p.age).Unix(), p.hidden, p.likes, p.comments)
	}
}

func postIDs(posts []models.Post) []int64 {
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestStoreUserExists(t *testing.T) {
	store := newTestStore(t)
	seedFixture(t, store)

	exists, err := store.UserExists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.UserExists(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStoreHomeCandidates(t *testing.T) {
	store := newTestStore(t)
	seedFixture(t, store)

	posts, err := store.HomeCandidates(context.Background(), 1, 10)
	require.NoError(t, err)

	// Own and followed posts only, newest first; the hidden post and
	// the stranger's posts stay out
	assert.Equal(t, []int64{2, 1}, postIDs(posts))
	assert.True(t, posts[0].Followed)
	assert.False(t, posts[1].Followed)

	clamped, err := store.HomeCandidates(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, postIDs(clamped))
}

func TestStoreExploreCandidates(t *testing.T) {
	store := newTestStore(t)
	seedFixture(t, store)

	posts, err := store.ExploreCandidates(context.Background(), 1, 10)
	require.NoError(t, err)

	// Unfollowed authors only, newest first
	assert.Equal(t, []int64{6, 3, 4}, postIDs(posts))
	for _, p := range posts {
		assert.False(t, p.Followed)
	}

	clamped, err := store.ExploreCandidates(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 3}, postIDs(clamped))
}

func TestStoreTrendingCandidates(t *testing.T) {
	store := newTestStore(t)
	seedFixture(t, store)

	since := testBase.Add(-24 * time.Hour).Unix()
	posts, err := store.TrendingCandidates(context.Background(), 1, since, 10)
	require.NoError(t, err)

	// Engagement order within the window; the 30h-old viral post is
	// outside it despite its likes
	assert.Equal(t, []int64{6, 3}, postIDs(posts))
}

func TestStoreMediaForPosts(t *testing.T) {
	store := newTestStore(t)
	seedFixture(t, store)

	for position, url := range []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"} {
		_, err := store.db.Exec("INSERT INTO post_media (post_id, url, position) VALUES (1, ?, ?)", url, position)
		require.NoError(t, err)
	}

	media, err := store.MediaForPosts(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64][]string{
		1: {"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
	}, media)

	empty, err := store.MediaForPosts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStoreSeenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedFixture(t, store)

	first := testBase.Unix()
	items := []models.SeenItemRef{{ID: 2, Type: "post"}, {ID: 3, Type: "post"}}
	require.NoError(t, store.RecordSeen(context.Background(), 1, items, first))

	seen, err := store.SeenSince(context.Background(), 1, "post", first)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{2: first, 3: first}, seen)

	// Re-recording refreshes the timestamp instead of duplicating
	refreshed := first + 60
	require.NoError(t, store.RecordSeen(context.Background(), 1, items[:1], refreshed))

	seen, err = store.SeenSince(context.Background(), 1, "post", first)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{2: refreshed, 3: first}, seen)

	// Another viewer's ledger is untouched
	other, err := store.SeenSince(context.Background(), 2, "post", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStoreTidySeen(t *testing.T) {
	store := newTestStore(t)
	seedFixture(t, store)

	old := testBase.Add(-10 * 24 * time.Hour).Unix()
	fresh := testBase.Unix()
	require.NoError(t, store.RecordSeen(context.Background(), 1, []models.SeenItemRef{{ID: 2}}, old))
	require.NoError(t, store.RecordSeen(context.Background(), 1, []models.SeenItemRef{{ID: 3}}, fresh))

	deleted, err := store.TidySeen(context.Background(), testBase.Add(-7*24*time.Hour).Unix())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	seen, err := store.SeenSince(context.Background(), 1, "post", 0)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{3: fresh}, seen)
}
