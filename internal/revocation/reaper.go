package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/metrics"

	"go.uber.org/zap"
)

// DefaultReaperInterval is how often expired local entries are purged.
const DefaultReaperInterval = time.Hour

// Purger is implemented by Cache.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Reaper periodically purges expired entries from a Cache's local store.
type Reaper struct {
	purger   Purger
	interval time.Duration
	logger   *zap.Logger
	metrics  core.Recorder
}

func NewReaper(purger Purger, interval time.Duration, log *zap.Logger, m core.Recorder) *Reaper {
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	return &Reaper{
		purger:   purger,
		interval: interval,
		logger:   log.Named("reaper"),
		metrics:  m,
	}
}

// Run purges once immediately and then on every tick until ctx is done.
// Failures are logged and never end the loop.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Reaper) runOnce(ctx context.Context) {
	var (
		purged int
		err    error
	)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during purge: %v", rec)
		}
		r.metrics.RecordReaperRun(purged, err)
		switch {
		case err != nil:
			r.logger.Error("failed to purge expired revocations", zap.Error(err))
		case purged > 0:
			r.logger.Info("purged expired revocations", zap.Int("count", purged))
		default:
			r.logger.Debug("no expired revocations to purge")
		}
	}()

	purged, err = r.purger.PurgeExpired(ctx)
}
