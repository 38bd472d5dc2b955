package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/zulandar/planyard/internal/metrics"
	"github.com/zulandar/planyard/internal/models"
)

// Target pairs an adapter with its platform name for logs and metrics.
type Target struct {
	Platform string
	Adapter  Adapter
}

// Dispatcher fans messages out to every configured platform. Delivery
// failures are logged and counted, never returned. A nil Dispatcher drops
// everything.
type Dispatcher struct {
	targets []Target
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger disables logging.
func NewDispatcher(logger *zap.Logger, targets ...Target) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{targets: targets, logger: logger}
}

// Len returns the number of configured targets.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.targets)
}

// Send delivers msg to every target and returns how many succeeded.
func (d *Dispatcher) Send(ctx context.Context, msg Message) int {
	if d == nil {
		return 0
	}
	ok := 0
	for _, t := range d.targets {
		if err := t.Adapter.Send(ctx, msg); err != nil {
			d.logger.Warn("notification failed",
				zap.String("platform", t.Platform),
				zap.Error(err))
			metrics.IncrementNotification(t.Platform, "error")
			continue
		}
		metrics.IncrementNotification(t.Platform, "ok")
		ok++
	}
	return ok
}

// ProjectVersionCreated announces a new project version.
func (d *Dispatcher) ProjectVersionCreated(ctx context.Context, p *models.Project, pv *models.ProjectVersion, author string) {
	if d.Len() == 0 || pv == nil {
		return
	}
	ev := ProjectVersionEvent(p, pv, author)
	d.Send(ctx, Message{Text: ev.Title, Events: []Event{ev}})
}

// ScheduleVersionCreated announces a schedule bump.
func (d *Dispatcher) ScheduleVersionCreated(ctx context.Context, p *models.Project, sv *models.ScheduleVersion, report *models.VersionChangeReport, author string) {
	if d.Len() == 0 || sv == nil {
		return
	}
	ev := ScheduleVersionEvent(p, sv, report, author)
	d.Send(ctx, Message{Text: ev.Title, Events: []Event{ev}})
}
