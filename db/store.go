package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"canter/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Store handles all database operations with a shared connection pool
type Store struct {
	db *sql.DB
}

func NewStore(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UserExists reports whether a viewer id refers to a known user.
func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return true, nil
}

// selectPosts starts a candidate query: the post columns plus the
// given expression for the followed flag.
func selectPosts(followed string) *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("p.id", "p.author_id", "p.content", "p.created_at",
		"p.like_count", "p.comment_count", followed)
	sb.From("posts p")
	return sb
}

// notFollowedBy builds the subquery excluding authors the viewer
// follows.
func notFollowedBy(viewerID int64) *sqlbuilder.SelectBuilder {
	follows := sqlbuilder.NewSelectBuilder()
	follows.Select("following_id").From("follows")
	follows.Where(follows.Equal("follower_id", viewerID))
	return follows
}

func (s *Store) queryPosts(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]models.Post, error) {
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// HomeCandidates returns the most recent posts authored by the viewer
// or by accounts the viewer follows, newest first. A viewer with no
// follows gets only their own posts.
func (s *Store) HomeCandidates(ctx context.Context, viewerID int64, window int) ([]models.Post, error) {
	sb := selectPosts("CASE WHEN f.following_id IS NULL THEN 0 ELSE 1 END AS followed")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "follows f",
		"f.follower_id = "+sb.Args.Add(viewerID),
		"f.following_id = p.author_id",
	)
	sb.Where(
		sb.Equal("p.hidden", 0),
		sb.Or(sb.Equal("p.author_id", viewerID), "f.following_id IS NOT NULL"),
	)
	sb.OrderBy("p.created_at DESC", "p.id ASC").Limit(window)

	return s.queryPosts(ctx, sb)
}

// ExploreCandidates returns recent posts from accounts the viewer does
// not follow, newest first.
func (s *Store) ExploreCandidates(ctx context.Context, viewerID int64, window int) ([]models.Post, error) {
	sb := selectPosts("0 AS followed")
	sb.Where(
		sb.Equal("p.hidden", 0),
		sb.NotEqual("p.author_id", viewerID),
		sb.NotIn("p.author_id", notFollowedBy(viewerID)),
	)
	sb.OrderBy("p.created_at DESC", "p.id ASC").Limit(window)

	return s.queryPosts(ctx, sb)
}

// TrendingCandidates returns discovery posts created since the given
// time, ordered by engagement. Used to blend a trending subset into
// the explore feed.
func (s *Store) TrendingCandidates(ctx context.Context, viewerID int64, since int64, window int) ([]models.Post, error) {
	sb := selectPosts("0 AS followed")
	sb.Where(
		sb.Equal("p.hidden", 0),
		sb.NotEqual("p.author_id", viewerID),
		sb.GreaterEqualThan("p.created_at", since),
		sb.NotIn("p.author_id", notFollowedBy(viewerID)),
	)
	sb.OrderBy("p.like_count + 2 * p.comment_count DESC", "p.created_at DESC", "p.id ASC")
	sb.Limit(window)

	return s.queryPosts(ctx, sb)
}

func scanPosts(rows *sql.Rows) ([]models.Post, error) {
	var posts []models.Post
	for rows.Next() {
		var post models.Post
		var followed int
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Content, &post.CreatedAt,
			&post.LikeCount, &post.CommentCount, &followed); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		post.Followed = followed != 0
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// MediaForPosts returns the media URLs for the given posts, keyed by
// post id and ordered by position.
func (s *Store) MediaForPosts(ctx context.Context, ids []int64) (map[int64][]string, error) {
	media := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return media, nil
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("post_id", "url").From("post_media")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	sb.Where(sb.In("post_id", args...))
	sb.OrderBy("post_id", "position")

	query, queryArgs := sb.BuildWithFlavor(sqlbuilder.SQLite)
	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var url string
		if err := rows.Scan(&postID, &url); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		media[postID] = append(media[postID], url)
	}
	return media, rows.Err()
}

// SeenSince returns item id -> last seen timestamp for items of the
// given type the viewer has seen at or after the given time.
func (s *Store) SeenSince(ctx context.Context, viewerID int64, itemType string, since int64) (map[int64]int64, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("item_id", "last_seen_at").From("seen_items")
	sb.Where(
		sb.Equal("viewer_id", viewerID),
		sb.Equal("item_type", itemType),
		sb.GreaterEqualThan("last_seen_at", since),
	)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	seen := map[int64]int64{}
	for rows.Next() {
		var itemID, lastSeenAt int64
		if err := rows.Scan(&itemID, &lastSeenAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		seen[itemID] = lastSeenAt
	}
	return seen, rows.Err()
}

// RecordSeen upserts seen marks for the given items. Recording an item
// twice just refreshes its timestamp.
func (s *Store) RecordSeen(ctx context.Context, viewerID int64, items []models.SeenItemRef, at int64) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		itemType := item.Type
		if itemType == "" {
			itemType = "post"
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO seen_items (viewer_id, item_id, item_type, last_seen_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (viewer_id, item_id, item_type) DO UPDATE SET
				last_seen_at = excluded.last_seen_at`,
			viewerID, item.ID, itemType, at,
		)
		if err != nil {
			return fmt.Errorf("upsert error: %w", err)
		}
	}

	return tx.Commit()
}

// TidySeen deletes seen records last touched before the cutoff and
// returns the number of rows removed.
func (s *Store) TidySeen(ctx context.Context, cutoff int64) (int64, error) {
	deleteSeen := sqlbuilder.NewDeleteBuilder()
	query, args := deleteSeen.DeleteFrom("seen_items").
		Where(deleteSeen.LessThan("last_seen_at", cutoff)).
		BuildWithFlavor(sqlbuilder.SQLite)

	log.WithFields(log.Fields{
		"cutoff": time.Unix(cutoff, 0).Format(time.RFC3339),
	}).Info("Tidying seen ledger")

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}
	return res.RowsAffected()
}
