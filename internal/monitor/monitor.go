// Package monitor watches the bus for alert-worthy events and runs the
// periodic health check.
package monitor

import (
	"fmt"
	"log"
	"time"

	"trading-bot/internal/events"
)

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogSink writes alerts to the process log. The default sink when no
// external channel is configured.
type LogSink struct{}

func (LogSink) Send(message string) error {
	log.Printf("[ALERT] %s", message)
	return nil
}

// alertTypes are the event types worth paging a human about.
var alertTypes = []events.EventType{
	events.TypeRiskLimitHit,
	events.TypeCircuitBreaker,
	events.TypeDrawdownAlert,
	events.TypeError,
}

// AlertWatcher forwards alert-worthy bus events to a sink.
type AlertWatcher struct {
	Sink AlertSink
}

// Register subscribes the watcher to every alert type on the bus.
func (w *AlertWatcher) Register(bus *events.Bus) {
	if w.Sink == nil {
		w.Sink = LogSink{}
	}
	for _, t := range alertTypes {
		bus.Subscribe(t, w.handle)
	}
}

func (w *AlertWatcher) handle(e events.Event) error {
	return w.Sink.Send(formatAlert(e))
}

func formatAlert(e events.Event) string {
	ts := time.UnixMilli(e.Timestamp).Format(time.RFC3339)
	if msg, ok := e.Payload["error_message"].(string); ok {
		return fmt.Sprintf("[%s] %s from %s: %s", ts, e.Type, e.Source, msg)
	}
	if reason, ok := e.Payload["reason"].(string); ok {
		return fmt.Sprintf("[%s] %s from %s: %s", ts, e.Type, e.Source, reason)
	}
	return fmt.Sprintf("[%s] %s from %s", ts, e.Type, e.Source)
}
