// v0
// internal/broadcast/hub.go
package broadcast

import (
	"context"
	"sync"

	"github.com/HashimCodeDev/STVE/internal/metrics"
)

// Topic identifies one of the four logical event streams the Hub
// carries.
type Topic string

const (
	ReadingNew     Topic = "reading.new"
	TrustUpdated   Topic = "trust.updated"
	TicketChanged  Topic = "ticket.changed"
	DashboardTick  Topic = "dashboard.update"
)

// Event is the envelope delivered to subscribers: a type tag, a
// monotone per-topic sequence number, and the entity payload.
type Event struct {
	Type      Topic
	Seq       uint64
	SensorRef string // empty for global-only events (ticket.changed, dashboard.update)
	Payload   any
}

const defaultCapacity = 64

// Hub is the engine's publish/subscribe surface. It owns one bounded
// queue per subscriber, a global fan-out list, and a per-sensor
// fan-out map, generalizing a fan-in select loop (many producers, one
// consumer) into fan-out (one
// producer, many consumers). Publish never blocks: a subscriber who
// cannot keep up has its oldest pending event evicted in preference
// to stalling the ingest path.
type Hub struct {
	mu         sync.Mutex
	nextID     uint64
	seqs       map[Topic]uint64
	global     map[uint64]*subscriber
	bySensor   map[string]map[uint64]*subscriber
	capacity   int
}

// New returns a Hub whose subscriber queues default to capacity
// entries (defaultCapacity if capacity <= 0).
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Hub{
		seqs:     make(map[Topic]uint64),
		global:   make(map[uint64]*subscriber),
		bySensor: make(map[string]map[uint64]*subscriber),
		capacity: capacity,
	}
}

// Subscription is the handle returned by Subscribe/SubscribeSensor. It
// is the caller's sole means of reading events and of unsubscribing.
type Subscription struct {
	hub       *Hub
	id        uint64
	sensorRef string // "" for a global subscription
	sub       *subscriber
}

// Next blocks until an event is available or ctx is done, returning
// (Event{}, false) on cancellation.
func (s *Subscription) Next(ctx context.Context) (Event, bool) {
	return s.sub.next(ctx)
}

// Close unsubscribes. Always permitted, never blocks publishers, and
// is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Subscribe registers a global observer that receives every event
// published on every topic.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	sub := newSubscriber(h.capacity)
	h.global[id] = sub
	return &Subscription{hub: h, id: id, sub: sub}
}

// SubscribeSensor registers an observer restricted to events carrying
// SensorRef == sensorRef, in addition to whichever topics are
// per-sensor (reading.new, trust.updated) — ticket.changed and
// dashboard.update are global-only and never reach a sensor-scoped
// subscription.
func (h *Hub) SubscribeSensor(sensorRef string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	sub := newSubscriber(h.capacity)
	set, ok := h.bySensor[sensorRef]
	if !ok {
		set = make(map[uint64]*subscriber)
		h.bySensor[sensorRef] = set
	}
	set[id] = sub
	return &Subscription{hub: h, id: id, sensorRef: sensorRef, sub: sub}
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.sensorRef == "" {
		delete(h.global, s.id)
		return
	}
	if set, ok := h.bySensor[s.sensorRef]; ok {
		delete(set, s.id)
		if len(set) == 0 {
			delete(h.bySensor, s.sensorRef)
		}
	}
}

// Publish delivers event to every global subscriber and, if
// event.SensorRef is set, to every subscriber scoped to that sensor.
// Per-topic sequence numbers are assigned here so publication ordering
// is per-topic FIFO with respect to each observer.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	h.seqs[event.Type]++
	event.Seq = h.seqs[event.Type]

	targets := make([]*subscriber, 0, len(h.global)+4)
	for _, sub := range h.global {
		targets = append(targets, sub)
	}
	if event.SensorRef != "" {
		for _, sub := range h.bySensor[event.SensorRef] {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		if sub.push(event) {
			metrics.IncBroadcastDropped(string(event.Type))
		}
	}
}

// subscriber is a bounded, discard-oldest event queue with a single
// reader. Pushes never block; Next blocks until an event is queued or
// the caller's context is done.
type subscriber struct {
	mu       sync.Mutex
	queue    []Event
	capacity int
	notify   chan struct{}
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{capacity: capacity, notify: make(chan struct{}, 1)}
}

// push enqueues e, evicting the oldest queued event if full, and
// reports whether an eviction occurred.
func (s *subscriber) push(e Event) bool {
	s.mu.Lock()
	dropped := false
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		dropped = true
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (s *subscriber) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e, true
}

func (s *subscriber) next(ctx context.Context) (Event, bool) {
	for {
		if e, ok := s.pop(); ok {
			return e, true
		}
		select {
		case <-ctx.Done():
			return Event{}, false
		case <-s.notify:
		}
	}
}
