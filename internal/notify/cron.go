package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration returns the duration from now until the next fire time
// of expr. Returns 0 on parse error.
func nextCronDuration(expr string, now time.Time) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RunDigest sends the digest on every fire time of expr until ctx is
// cancelled. Failed runs are logged and the loop continues.
func RunDigest(ctx context.Context, db *gorm.DB, d *Dispatcher, expr string, logger *zap.Logger) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("notify: digest cron %q: %w", expr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		wait := nextCronDuration(expr, time.Now())
		logger.Debug("next digest scheduled", zap.Duration("in", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case now := <-timer.C:
			sent, err := SendDigest(ctx, db, d, now.UTC())
			if err != nil {
				logger.Error("digest failed", zap.Error(err))
				continue
			}
			logger.Info("digest run", zap.Bool("sent", sent))
		}
	}
}
