// v0
// internal/tickets/manager_test.go
package tickets

import (
	"errors"
	"testing"

	"github.com/HashimCodeDev/STVE/internal/broadcast"
	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/keyedlock"
	"github.com/HashimCodeDev/STVE/internal/model"
	"github.com/HashimCodeDev/STVE/internal/store"
)

func newManager(t *testing.T) (*Manager, *store.Store, string) {
	t.Helper()
	st := store.New(config.Default())
	ref, err := st.RegisterSensor("ext-1", "z1", "soil", nil, nil)
	if err != nil {
		t.Fatalf("register sensor: %v", err)
	}
	m := New(st, broadcast.New(8), keyedlock.New(), nil)
	return m, st, ref
}

func TestOnAnomalousOpensTicket(t *testing.T) {
	m, _, ref := newManager(t)

	ticket, err := m.OnAnomalous(ref, "moisture static for 10 readings", model.SeverityHigh)
	if err != nil {
		t.Fatalf("onAnomalous: %v", err)
	}
	if ticket.Status != model.TicketOpen || ticket.Severity != model.SeverityHigh {
		t.Fatalf("expected a new Open/High ticket, got %+v", ticket)
	}
}

func TestOnAnomalousEscalatesExistingOpenTicket(t *testing.T) {
	m, st, ref := newManager(t)

	first, err := m.OnAnomalous(ref, "moisture static", model.SeverityMedium)
	if err != nil {
		t.Fatalf("first onAnomalous: %v", err)
	}

	second, err := m.OnAnomalous(ref, "ph impossible value", model.SeverityCritical)
	if err != nil {
		t.Fatalf("second onAnomalous: %v", err)
	}
	if second.TicketRef != first.TicketRef {
		t.Fatalf("expected the same ticket to be reused, got %s vs %s", first.TicketRef, second.TicketRef)
	}
	if second.Severity != model.SeverityCritical {
		t.Fatalf("expected severity raised to Critical, got %s", second.Severity)
	}
	if second.Issue != "ph impossible value" {
		t.Fatalf("expected the issue text updated, got %q", second.Issue)
	}

	all := st.ListTickets(nil)
	if len(all) != 1 {
		t.Fatalf("expected no duplicate ticket created, got %d tickets", len(all))
	}
}

func TestOnAnomalousDoesNotDowngradeSeverity(t *testing.T) {
	m, _, ref := newManager(t)
	_, _ = m.OnAnomalous(ref, "first", model.SeverityCritical)
	ticket, err := m.OnAnomalous(ref, "second", model.SeverityLow)
	if err != nil {
		t.Fatalf("onAnomalous: %v", err)
	}
	if ticket.Severity != model.SeverityCritical {
		t.Fatalf("expected severity to remain Critical, got %s", ticket.Severity)
	}
}

func TestTicketStateMachine(t *testing.T) {
	m, _, ref := newManager(t)
	ticket, _ := m.OnAnomalous(ref, "issue", model.SeverityHigh)

	progressed, err := m.Progress(ticket.TicketRef)
	if err != nil || progressed.Status != model.TicketInProgress {
		t.Fatalf("expected InProgress, got %+v err=%v", progressed, err)
	}

	resolved, err := m.Resolve(progressed.TicketRef)
	if err != nil || resolved.Status != model.TicketResolved || resolved.ResolvedAt == nil {
		t.Fatalf("expected Resolved with resolvedAt set, got %+v err=%v", resolved, err)
	}

	if _, err := m.Progress(resolved.TicketRef); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected no transitions out of Resolved, got %v", err)
	}
}

func TestOpenDirectlyToResolvedPermitted(t *testing.T) {
	m, _, ref := newManager(t)
	ticket, _ := m.OnAnomalous(ref, "issue", model.SeverityHigh)

	resolved, err := m.Resolve(ticket.TicketRef)
	if err != nil || resolved.Status != model.TicketResolved {
		t.Fatalf("expected direct Open->Resolved to succeed, got %+v err=%v", resolved, err)
	}
}

func TestResolvingOpensNewTicketSlot(t *testing.T) {
	m, st, ref := newManager(t)
	first, _ := m.OnAnomalous(ref, "first", model.SeverityHigh)
	if _, err := m.Resolve(first.TicketRef); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	second, err := m.OnAnomalous(ref, "second", model.SeverityLow)
	if err != nil {
		t.Fatalf("onAnomalous after resolve: %v", err)
	}
	if second.TicketRef == first.TicketRef {
		t.Fatalf("expected a fresh ticket once the prior one resolved")
	}

	all := st.ListTickets(nil)
	if len(all) != 2 {
		t.Fatalf("expected two tickets total, got %d", len(all))
	}
}

func TestStatsSummary(t *testing.T) {
	m, _, ref := newManager(t)
	ticket, _ := m.OnAnomalous(ref, "issue", model.SeverityHigh)
	_, _ = m.Progress(ticket.TicketRef)

	s := m.StatsSummary()
	if s.InProgress != 1 || s.Total != 1 || s.Open != 0 {
		t.Fatalf("expected {open:0 inProgress:1 total:1}, got %+v", s)
	}
}
