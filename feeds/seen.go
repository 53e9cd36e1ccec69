package feeds

import (
	"context"
	"time"

	"canter/config"
	"canter/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var ledgerWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "canter_seen_ledger_write_failures_total",
	Help: "Seen-ledger writes that failed after retries and were dropped",
})

// SeenPolicy controls what happens to recently seen items: drop them
// from the page or demote their score so they resurface lower.
type SeenPolicy struct {
	WindowHours  int
	Policy       string
	DemoteFactor float64
	WriteTimeout time.Duration
	Epsilon      float64
}

// filterSeen applies the seen-window policy to a ranked list. The
// window is evaluated as of the traversal anchor, so marks recorded
// while the traversal is in flight do not reshuffle its later pages.
// A ledger read failure degrades to "show everything": a repeated item
// beats a failed feed.
func (s *Service) filterSeen(ctx context.Context, viewerID int64, ranked []models.RankedPost, anchor time.Time) []models.RankedPost {
	if s.seen.WindowHours <= 0 {
		return ranked
	}

	since := anchor.Add(-time.Duration(s.seen.WindowHours) * time.Hour).Unix()
	seenAt, err := s.store.SeenSince(ctx, viewerID, "post", since)
	if err != nil {
		log.WithFields(log.Fields{
			"viewer": viewerID,
			"error":  err,
		}).Warn("Seen ledger read failed, serving unfiltered feed")
		return ranked
	}

	// Strictly before the anchor: marks the traversal records for its
	// own pages land at or after the anchor second and must not
	// reshuffle the pages still to come.
	inWindow := func(id int64) bool {
		at, wasSeen := seenAt[id]
		return wasSeen && at < anchor.Unix()
	}

	if s.seen.Policy == config.SeenPolicyExclude {
		return lo.Filter(ranked, func(item models.RankedPost, _ int) bool {
			return !inWindow(item.ID)
		})
	}

	// Demote: scale the score and restore the total order.
	demoted := make([]models.RankedPost, len(ranked))
	copy(demoted, ranked)
	for i := range demoted {
		if inWindow(demoted[i].ID) {
			demoted[i].Score *= s.seen.DemoteFactor
		}
	}
	sortRanked(demoted, s.seen.Epsilon)
	return demoted
}

// recordSeen upserts seen marks with a short timeout and exponential
// backoff. Best effort: failures are logged and counted, never
// returned, so feed delivery cannot be blocked by the ledger.
func (s *Service) recordSeen(viewerID int64, items []models.SeenItemRef) {
	if len(items) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.seen.WriteTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = s.seen.WriteTimeout

	at := s.now().Unix()
	err := backoff.Retry(func() error {
		return s.store.RecordSeen(ctx, viewerID, items, at)
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		ledgerWriteFailures.Inc()
		log.WithFields(log.Fields{
			"viewer": viewerID,
			"items":  len(items),
			"error":  err,
		}).Warn("Dropping seen-ledger write after retries")
	}
}
