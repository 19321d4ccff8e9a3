// Package events publishes domain events on Redis pub/sub channels.
//
// Publishing is always best-effort: a failed publish is logged and never
// fails the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Channel names. Each event is published on the channel named after its type.
const (
	TrackingUpdated = "EVENT_TRACKING_UPDATED"
	ScrapeCompleted = "EVENT_SCRAPE_COMPLETED"
	ScrapeFailed    = "EVENT_SCRAPE_FAILED"
)

// Publisher sends one event. Implementations must not block for long and
// must not return errors to the caller.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

// Redis publishes JSON events with go-redis.
type Redis struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ Publisher = (*Redis)(nil)

// NewRedis returns a Publisher backed by rdb.
func NewRedis(rdb *redis.Client, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rdb: rdb, logger: logger.With("component", "events")}
}

func (p *Redis) Publish(ctx context.Context, eventType string, payload map[string]any) {
	body, err := Encode(eventType, payload)
	if err != nil {
		p.logger.Warn("encode event failed", "type", eventType, "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, eventType, body).Err(); err != nil {
		p.logger.Warn("publish "+eventType+" failed", "err", err)
	}
}

// Encode renders the wire form of an event: payload plus a "type" key.
func Encode(eventType string, payload map[string]any) ([]byte, error) {
	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = eventType
	return json.Marshal(msg)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, map[string]any) {}

// Event is one recorded publication.
type Event struct {
	Type    string
	Payload map[string]any
}

// Recorder keeps published events in memory. Used in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, eventType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Type: eventType, Payload: payload})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
