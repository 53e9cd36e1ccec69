package feeds

import (
	"context"
	"fmt"
	"time"

	"canter/models"

	"github.com/samber/lo"
)

// Kind selects which feed variant to assemble.
type Kind string

const (
	// KindHome serves posts from the viewer and followed authors.
	KindHome Kind = "home"
	// KindExplore serves discovery posts from unfollowed authors,
	// blended with a trending subset.
	KindExplore Kind = "explore"
)

// Store is the content-store and seen-ledger surface the feed service
// reads from. Implemented by db.Store; tests substitute fakes.
type Store interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	HomeCandidates(ctx context.Context, viewerID int64, window int) ([]models.Post, error)
	ExploreCandidates(ctx context.Context, viewerID int64, window int) ([]models.Post, error)
	TrendingCandidates(ctx context.Context, viewerID int64, since int64, window int) ([]models.Post, error)
	MediaForPosts(ctx context.Context, ids []int64) (map[int64][]string, error)
	SeenSince(ctx context.Context, viewerID int64, itemType string, since int64) (map[int64]int64, error)
	RecordSeen(ctx context.Context, viewerID int64, items []models.SeenItemRef, at int64) error
}

// fetchCandidates retrieves the recency-ordered candidate window for a
// feed kind. Read-only; validation happens before any store access.
// The trending window is evaluated as of the traversal anchor so later
// pages of one traversal see the same blend.
func (s *Service) fetchCandidates(ctx context.Context, kind Kind, viewerID int64, anchor time.Time) ([]models.Post, error) {
	if kind != KindHome && kind != KindExplore {
		return nil, fmt.Errorf("%w: unknown feed kind %q", ErrInvalidArgument, kind)
	}

	exists, err := s.store.UserExists(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("viewer lookup: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: viewer %d", ErrNotFound, viewerID)
	}

	if kind == KindHome {
		return s.store.HomeCandidates(ctx, viewerID, s.ranking.CandidateWindow)
	}

	recent, err := s.store.ExploreCandidates(ctx, viewerID, s.ranking.CandidateWindow)
	if err != nil {
		return nil, err
	}

	since := anchor.Add(-time.Duration(s.ranking.TrendingHours) * time.Hour).Unix()
	trending, err := s.store.TrendingCandidates(ctx, viewerID, since, s.ranking.TrendingWindow)
	if err != nil {
		return nil, err
	}

	// Trending posts usually overlap the recent window; the ranker
	// orders the union, so a plain dedupe is enough here.
	return lo.UniqBy(append(recent, trending...), func(p models.Post) int64 {
		return p.ID
	}), nil
}
