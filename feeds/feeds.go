package feeds

import (
	"context"
	"fmt"
	"time"

	"canter/config"
	"canter/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Service assembles feed pages: fetch candidates, rank, apply the
// seen-window policy, paginate, then record the served page as seen.
// Stateless per request; safe for concurrent use.
type Service struct {
	store   Store
	ranking config.TomlRanking
	weights Weights
	seen    SeenPolicy

	defaultPageSize int
	maxPageSize     int

	// now is injected so ranking and seen-window logic are
	// deterministic under test.
	now func() time.Time
}

func NewService(store Store, cfg *config.Config) *Service {
	return &Service{
		store:   store,
		ranking: cfg.Ranking,
		weights: Weights{
			RecencyHalfLifeHours: cfg.Ranking.RecencyHalfLifeHours,
			AffinityBoost:        cfg.Ranking.AffinityBoost,
			EngagementWeight:     cfg.Ranking.EngagementWeight,
			EngagementCap:        cfg.Ranking.EngagementCap,
			Epsilon:              cfg.Ranking.Epsilon,
		},
		seen: SeenPolicy{
			WindowHours:  cfg.Seen.WindowHours,
			Policy:       cfg.Seen.Policy,
			DemoteFactor: cfg.Seen.DemoteFactor,
			WriteTimeout: time.Duration(cfg.Seen.WriteTimeoutMillis) * time.Millisecond,
			Epsilon:      cfg.Ranking.Epsilon,
		},
		defaultPageSize: cfg.Server.DefaultPageSize,
		maxPageSize:     cfg.Server.MaxPageSize,
		now:             time.Now,
	}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetHomeFeed returns one page of the viewer's home feed.
func (s *Service) GetHomeFeed(ctx context.Context, viewerID int64, cursor string, limit int) (*models.FeedPage, error) {
	return s.getFeed(ctx, KindHome, viewerID, cursor, limit)
}

// GetExploreFeed returns one page of the discovery feed.
func (s *Service) GetExploreFeed(ctx context.Context, viewerID int64, cursor string, limit int) (*models.FeedPage, error) {
	return s.getFeed(ctx, KindExplore, viewerID, cursor, limit)
}

func (s *Service) getFeed(ctx context.Context, kind Kind, viewerID int64, cursor string, limit int) (*models.FeedPage, error) {
	if limit == 0 {
		limit = s.defaultPageSize
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidArgument)
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	resume, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if resume.Anchor == 0 {
		resume.Anchor = s.now().Unix()
	}
	anchor := time.Unix(resume.Anchor, 0)

	candidates, err := s.fetchCandidates(ctx, kind, viewerID, anchor)
	if err != nil {
		return nil, err
	}

	ranked := Rank(candidates, anchor, s.weights)
	ranked = s.filterSeen(ctx, viewerID, ranked, anchor)

	page, nextCursor, err := Paginate(ranked, resume, limit, s.weights.Epsilon)
	if err != nil {
		return nil, err
	}

	items := lo.Map(page, func(item models.RankedPost, _ int) models.Post {
		return item.Post
	})
	s.attachMedia(ctx, items)

	// Fire and forget: the response never waits on the ledger.
	refs := lo.Map(items, func(item models.Post, _ int) models.SeenItemRef {
		return models.SeenItemRef{ID: item.ID, Type: "post"}
	})
	go s.recordSeen(viewerID, refs)

	if items == nil {
		items = []models.Post{}
	}
	return &models.FeedPage{Items: items, NextCursor: nextCursor}, nil
}

// RecordSeenItems is the explicit client acknowledgment, complementary
// to the automatic recording when a page is served. Synchronous but
// still best effort.
func (s *Service) RecordSeenItems(ctx context.Context, viewerID int64, items []models.SeenItemRef) error {
	exists, err := s.store.UserExists(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("viewer lookup: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: viewer %d", ErrNotFound, viewerID)
	}

	s.recordSeen(viewerID, items)
	return nil
}

// attachMedia decorates page items with their media URLs. Degrades to
// media-less items on store failure; the page itself is already
// assembled.
func (s *Service) attachMedia(ctx context.Context, items []models.Post) {
	if len(items) == 0 {
		return
	}

	ids := lo.Map(items, func(item models.Post, _ int) int64 { return item.ID })
	media, err := s.store.MediaForPosts(ctx, ids)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Media lookup failed, serving posts without media")
		return
	}

	for i := range items {
		items[i].Media = media[items[i].ID]
	}
}
