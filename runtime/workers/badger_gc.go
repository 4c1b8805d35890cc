package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGCWorker periodically rewrites badger value-log files whose
// live data dropped below the discard ratio. Badger never reclaims
// that space on its own; without this worker the store only grows.
type BadgerGCWorker struct {
	db       *badger.DB
	log      *slog.Logger
	interval time.Duration
}

func NewBadgerGCWorker(db *badger.DB, log *slog.Logger, interval time.Duration) *BadgerGCWorker {
	return &BadgerGCWorker{db: db, log: log, interval: interval}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// One file per pass; loop until nothing is left to rewrite.
			for {
				if err := w.db.RunValueLogGC(0.5); err != nil {
					if err != badger.ErrNoRewrite {
						w.log.Warn("value log GC failed", "error", err)
					}
					break
				}
				w.log.Debug("value log file rewritten")
			}
		}
	}
}
