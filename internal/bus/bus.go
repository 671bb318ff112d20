// Package bus implements the realtime fan-out layer. State changes in the
// coaching domain (new chat messages, read receipts, assignment switches) are
// published as Events and delivered to every live subscription of the
// addressed principals.
//
// Delivery is at-least-once: a subscriber whose buffer is full has the event
// dropped and is expected to recover via a backfill read on reconnect. Events
// carry the full row so consumers never need a second fetch for correctness.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

// Event types carried on the bus.
const (
	EventMessageCreated    = "message.created"
	EventMessageRead       = "message.read"
	EventAssignmentChanged = "assignment.changed"
)

// subscriberBuffer is the per-subscription channel depth. A slow consumer
// that falls further behind than this loses events and must backfill.
const subscriberBuffer = 64

// Event is a single bus notification. Exactly one of Message, Assignment is
// set depending on Type; EventMessageRead carries the read receipt fields
// instead. Recipients lists the principal ids the event is addressed to.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	PairKey    string    `json:"pair_key,omitempty"`
	At         time.Time `json:"at"`
	Recipients []string  `json:"recipients"`

	Message *domain.ChatMessage `json:"message,omitempty"`

	ReaderID       string   `json:"reader_id,omitempty"`
	ReadMessageIDs []string `json:"read_message_ids,omitempty"`

	Assignment      *domain.Assignment `json:"assignment,omitempty"`
	EndedAssignment *domain.Assignment `json:"ended_assignment,omitempty"`
}

// Publisher is the write side of the bus as seen by the service layer.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_published_total",
		Help: "Events published to the presence bus, by type.",
	}, []string{"type"})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_events_dropped_total",
		Help: "Events dropped because a subscriber buffer was full.",
	})

	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bus_subscribers",
		Help: "Currently connected bus subscriptions.",
	})
)

// Subscription is one live consumer attached to the hub. C yields events in
// publish order; Close detaches the subscription and releases its channel.
// Events in flight after Close are dropped.
type Subscription struct {
	C chan Event

	principalID string
	hub         *Hub
	once        sync.Once
}

// Close removes the subscription from the hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub is the in-process fan-out. It keeps, per principal id, the set of live
// subscriptions and delivers each published event to every subscription of
// every recipient. Delivery within one Publish call is synchronous, so events
// for the same pair arrive in publish order on any given subscription.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe attaches a new subscription for the given principal.
func (h *Hub) Subscribe(principalID string) *Subscription {
	sub := &Subscription{
		C:           make(chan Event, subscriberBuffer),
		principalID: principalID,
		hub:         h,
	}
	h.mu.Lock()
	set, ok := h.subs[principalID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[principalID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	subscribersGauge.Inc()
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[sub.principalID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.principalID)
		}
	}
	h.mu.Unlock()

	subscribersGauge.Dec()
}

// Publish delivers ev to every live subscription of every recipient. Sends
// never block: a full subscriber channel counts as a drop and the consumer
// recovers via backfill.
func (h *Hub) Publish(_ context.Context, ev Event) {
	publishedTotal.WithLabelValues(ev.Type).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, principalID := range ev.Recipients {
		for sub := range h.subs[principalID] {
			select {
			case sub.C <- ev:
			default:
				droppedTotal.Inc()
				log.Warn().
					Str("principal_id", principalID).
					Str("event_type", ev.Type).
					Msg("bus subscriber buffer full, event dropped")
			}
		}
	}
}
