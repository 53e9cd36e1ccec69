package db

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var tidyDeletedRows = promauto.NewCounter(prometheus.CounterOpts{
	Name: "canter_seen_tidy_deleted_rows_total",
	Help: "Number of seen-ledger rows removed by the retention sweep",
})

// Tidy removes seen-ledger records older than the retention period.
// Run as a one-shot from the CLI or periodically from the serve loop.
func Tidy(database string, retentionDays int) error {
	store, err := NewStore(database)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Tidy(context.Background(), retentionDays)
}

// Tidy deletes seen records last touched more than retentionDays ago.
func (s *Store) Tidy(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).Unix()

	deleted, err := s.TidySeen(ctx, cutoff)
	if err != nil {
		return err
	}

	tidyDeletedRows.Add(float64(deleted))
	log.WithFields(log.Fields{
		"deleted":       deleted,
		"retentionDays": retentionDays,
	}).Info("Seen ledger tidied")
	return nil
}
