// v0
// internal/tickets/manager.go
package tickets

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HashimCodeDev/STVE/internal/broadcast"
	"github.com/HashimCodeDev/STVE/internal/keyedlock"
	"github.com/HashimCodeDev/STVE/internal/metrics"
	"github.com/HashimCodeDev/STVE/internal/model"
	"github.com/HashimCodeDev/STVE/internal/store"
)

// Manager is the maintenance-ticket lifecycle authority: onAnomalous
// opens or escalates a ticket, resolve/progress drive its state
// machine, list/statsSummary serve the dashboard. It shares its
// per-sensor keyed lock with the Ingestor (injected, not owned) so the
// open-ticket check-then-create is atomic with the Ingestor's persist
// step — generalizing a mutex-map-plus-snapshot shape from a
// periodic-refresh cache to an
// event-driven state machine.
type Manager struct {
	store *store.Store
	hub   *broadcast.Hub
	locks *keyedlock.Set
	log   *slog.Logger
}

// New wires a ticket Manager. locks must be the same Set the Ingestor
// uses for its per-sensor serialization.
func New(st *store.Store, hub *broadcast.Hub, locks *keyedlock.Set, log *slog.Logger) *Manager {
	return &Manager{store: st, hub: hub, locks: locks, log: log}
}

// OnAnomalous opens a ticket for sensorRef, or — if one is already
// Open — updates its issue text and raises its severity to
// max(existing, new) without creating a duplicate. Emits
// ticket.changed either way. The caller must already hold sensorRef's
// lock from the shared Set (the Ingestor calls this inside its
// per-sensor critical section), so OnAnomalous does not take it again.
func (m *Manager) OnAnomalous(sensorRef, diagnostic string, severity model.Severity) (model.Ticket, error) {
	existing, err := m.store.OpenTicketForSensor(sensorRef)
	if err != nil {
		return model.Ticket{}, err
	}

	var ticket model.Ticket
	if existing != nil {
		ticket = *existing
		ticket.Issue = diagnostic
		ticket.Severity = model.MaxSeverity(ticket.Severity, severity)
	} else {
		ticket = model.Ticket{
			TicketRef: uuid.NewString(),
			SensorRef: sensorRef,
			Issue:     diagnostic,
			Severity:  severity,
			Status:    model.TicketOpen,
			CreatedAt: time.Now().UTC(),
		}
	}

	if err := m.store.SaveTicket(ticket); err != nil {
		return model.Ticket{}, err
	}
	if existing == nil {
		metrics.IncTicketOpened()
	}
	m.publish(ticket)
	return ticket, nil
}

// Progress transitions ticketRef from Open to InProgress. No
// transitions out of Resolved are permitted.
func (m *Manager) Progress(ticketRef string) (model.Ticket, error) {
	return m.transition(ticketRef, model.TicketInProgress)
}

// Resolve transitions ticketRef to Resolved (from Open or InProgress)
// and stamps resolvedAt.
func (m *Manager) Resolve(ticketRef string) (model.Ticket, error) {
	return m.transition(ticketRef, model.TicketResolved)
}

func (m *Manager) transition(ticketRef string, target model.TicketStatus) (model.Ticket, error) {
	ticket, err := m.store.GetTicket(ticketRef)
	if err != nil {
		return model.Ticket{}, err
	}

	unlock := m.locks.Lock(ticket.SensorRef)
	defer unlock()

	// Re-read under the lock: another goroutine may have transitioned it
	// between the unlocked GetTicket above and acquiring the lock.
	ticket, err = m.store.GetTicket(ticketRef)
	if err != nil {
		return model.Ticket{}, err
	}

	if !validTransition(ticket.Status, target) {
		return model.Ticket{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, ticket.Status, target)
	}

	ticket.Status = target
	if target == model.TicketResolved {
		now := time.Now().UTC()
		ticket.ResolvedAt = &now
	}

	if err := m.store.SaveTicket(ticket); err != nil {
		return model.Ticket{}, err
	}
	if target == model.TicketResolved {
		metrics.IncTicketResolved()
	}
	m.publish(ticket)
	return ticket, nil
}

// validTransition enforces Open -> InProgress -> Resolved, with Open ->
// Resolved permitted directly and nothing leaving Resolved.
func validTransition(from, to model.TicketStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case model.TicketOpen:
		return to == model.TicketInProgress || to == model.TicketResolved
	case model.TicketInProgress:
		return to == model.TicketResolved
	default: // Resolved
		return false
	}
}

// List returns every ticket, optionally filtered by status.
func (m *Manager) List(statusFilter *model.TicketStatus) []model.Ticket {
	return m.store.ListTickets(statusFilter)
}

// Summary is the (open, inProgress, resolved, total) tuple served by
// statsSummary.
type Summary struct {
	Open       int
	InProgress int
	Resolved   int
	Total      int
}

// StatsSummary tallies ticket counts by status across all sensors.
func (m *Manager) StatsSummary() Summary {
	all := m.store.ListTickets(nil)
	s := Summary{Total: len(all)}
	for _, t := range all {
		switch t.Status {
		case model.TicketOpen:
			s.Open++
		case model.TicketInProgress:
			s.InProgress++
		case model.TicketResolved:
			s.Resolved++
		}
	}
	return s
}

func (m *Manager) publish(ticket model.Ticket) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(broadcast.Event{
		Type:    broadcast.TicketChanged,
		Payload: ticket,
	})
	if m.log != nil {
		m.log.Info("ticket_changed",
			slog.String("ticketRef", ticket.TicketRef),
			slog.String("sensorRef", ticket.SensorRef),
			slog.String("status", string(ticket.Status)),
			slog.String("severity", string(ticket.Severity)),
		)
	}
}
