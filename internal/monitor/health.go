package monitor

import (
	"context"
	"time"

	"trading-bot/internal/events"
	"trading-bot/internal/lifecycle"
)

// HealthChecker publishes a periodic health_check event describing the
// runtime. Wire its Check method into the scheduler.
type HealthChecker struct {
	Bus       *events.Bus
	Lifecycle *lifecycle.Manager

	startedAt time.Time
}

func NewHealthChecker(bus *events.Bus, lc *lifecycle.Manager) *HealthChecker {
	return &HealthChecker{
		Bus:       bus,
		Lifecycle: lc,
		startedAt: time.Now(),
	}
}

// Check snapshots the runtime and publishes it as a health_check event.
func (h *HealthChecker) Check(ctx context.Context) error {
	h.Bus.PublishNowait(events.New(events.TypeHealthCheck, "monitor", map[string]any{
		"state":           string(h.Lifecycle.State()),
		"trading_allowed": h.Lifecycle.IsTradingAllowed(),
		"active_pauses":   len(h.Lifecycle.ActivePauses()),
		"pending_events":  h.Bus.PendingEvents(),
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
	}))
	return nil
}
