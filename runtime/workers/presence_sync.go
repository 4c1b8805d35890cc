package workers

import (
	"context"
	"log/slog"
	"time"

	"veilchat/presence"
)

// PresenceSyncWorker re-arms the redis TTLs of this instance's
// presence entries so a crashed instance drops off the shared view
// within one TTL. Only started when the redis registry is configured.
type PresenceSyncWorker struct {
	registry *presence.RedisRegistry
	log      *slog.Logger
	interval time.Duration
}

func NewPresenceSyncWorker(registry *presence.RedisRegistry, log *slog.Logger, interval time.Duration) *PresenceSyncWorker {
	return &PresenceSyncWorker{registry: registry, log: log, interval: interval}
}

func (w *PresenceSyncWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.registry.Refresh(ctx); err != nil {
				w.log.Warn("presence TTL refresh failed", "error", err)
			}
		}
	}
}
