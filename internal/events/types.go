package events

import "time"

// EventType enumerates high-level topics inside the bot runtime.
// The values are stable strings; other subsystems key their payload
// conventions off them.
type EventType string

const (
	TypeMarketData           EventType = "market_data"
	TypeKline                EventType = "kline"
	TypeOrderbook            EventType = "orderbook"
	TypeTrade                EventType = "trade"
	TypeTicker               EventType = "ticker"
	TypeSignal               EventType = "signal"
	TypeOrderPlaced          EventType = "order_placed"
	TypeOrderFilled          EventType = "order_filled"
	TypeOrderCancelled       EventType = "order_cancelled"
	TypeOrderRejected        EventType = "order_rejected"
	TypeOrderPartiallyFilled EventType = "order_partially_filled"
	TypePositionOpened       EventType = "position_opened"
	TypePositionUpdated      EventType = "position_updated"
	TypePositionClosed       EventType = "position_closed"
	TypeRiskLimitHit         EventType = "risk_limit_hit"
	TypeCircuitBreaker       EventType = "circuit_breaker"
	TypeDrawdownAlert        EventType = "drawdown_alert"
	TypePortfolioUpdate      EventType = "portfolio_update"
	TypeRebalance            EventType = "rebalance"
	TypeSystemStart          EventType = "system_start"
	TypeSystemStop           EventType = "system_stop"
	TypeHealthCheck          EventType = "health_check"
	TypeError                EventType = "error"
)

// Event is an immutable notification delivered through the bus.
// Payload fields are a convention between producer and consumers;
// the bus itself never inspects them.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
	Source    string         `json:"source"`
	Payload   map[string]any `json:"payload"`
}

// New builds an event stamped with the current wall clock.
func New(t EventType, source string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
		Source:    source,
		Payload:   payload,
	}
}
