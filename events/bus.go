// Package events implements the Redis-streams event bus used to link
// the symbol, market data, analyzer, and notifier services.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quantpulse/logger"
)

// EventType identifies the kind of event on the bus
type EventType string

const (
	SymbolsSelected   EventType = "symbols_selected"
	SymbolsImported   EventType = "symbols_imported"
	MarketDataUpdated EventType = "market_data_updated"
	SignalTriggered   EventType = "signal_triggered"
	AnalysisStarted   EventType = "analysis_started"
	AnalysisCompleted EventType = "analysis_completed"
)

const channelPrefix = "quantpulse:events:"

// KnownEventTypes lists every event type published on the bus
func KnownEventTypes() []EventType {
	return []EventType{
		SymbolsSelected,
		SymbolsImported,
		MarketDataUpdated,
		SignalTriggered,
		AnalysisStarted,
		AnalysisCompleted,
	}
}

// IsKnownEventType reports whether the type is published on the bus
func IsKnownEventType(eventType EventType) bool {
	for _, t := range KnownEventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

// Event is a single bus message
type Event struct {
	EventType EventType              `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(eventType EventType, data map[string]interface{}) Event {
	return Event{
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Bus publishes and reads events. Publish failures are logged and
// swallowed so a Redis outage never fails the calling operation.
type Bus struct {
	client *redis.Client
}

// NewBus creates a bus over the given Redis connection
func NewBus(addr, password string) *Bus {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &Bus{client: client}
}

// NewBusWithClient creates a bus over an existing client
func NewBusWithClient(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// Publish appends the event to its stream
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil || b.client == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Get().Warnw("event marshal failed", "type", event.EventType, "error", err)
		return
	}

	stream := channelPrefix + string(event.EventType)
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(payload)},
	}).Err()
	if err != nil {
		logger.Get().Warnw("event publish failed", "stream", stream, "error", err)
	}
}

// Recent returns up to count most recent events of a type, newest first
func (b *Bus) Recent(ctx context.Context, eventType EventType, count int) ([]Event, error) {
	if b == nil || b.client == nil {
		return nil, nil
	}

	stream := channelPrefix + string(eventType)
	messages, err := b.client.XRevRangeN(ctx, stream, "+", "-", int64(count)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// Close closes the underlying Redis connection
func (b *Bus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
