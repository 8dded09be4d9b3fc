// v0
// internal/store/store_test.go
package store

import (
	"errors"
	"testing"

	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/model"
)

func TestRegisterSensorDuplicateID(t *testing.T) {
	s := New(config.Default())
	if _, err := s.RegisterSensor("ext-1", "z1", "soil", nil, nil); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := s.RegisterSensor("ext-1", "z2", "soil", nil, nil); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestRegisterSensorSeedsTrustResult(t *testing.T) {
	s := New(config.Default())
	ref, _ := s.RegisterSensor("ext-1", "z1", "soil", nil, nil)
	results, err := s.RecentTrustResults(ref, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Score != 1.0 || results[0].Status != model.StatusHealthy {
		t.Fatalf("expected a seeded healthy TrustResult, got %+v", results)
	}
}

func TestAppendReadingUnknownSensor(t *testing.T) {
	s := New(config.Default())
	if _, err := s.AppendReading("missing", model.Reading{}); !errors.Is(err, model.ErrUnknownSensor) {
		t.Fatalf("expected ErrUnknownSensor, got %v", err)
	}
}

func TestAppendReadingThenRecentReadings(t *testing.T) {
	s := New(config.Default())
	ref, _ := s.RegisterSensor("ext-1", "z1", "soil", nil, nil)
	moisture := 42.0
	if _, err := s.AppendReading(ref, model.Reading{Moisture: &moisture}); err != nil {
		t.Fatalf("append: %v", err)
	}
	readings, err := s.RecentReadings(ref, 5)
	if err != nil {
		t.Fatalf("recent readings: %v", err)
	}
	if len(readings) != 1 || *readings[0].Moisture != 42.0 {
		t.Fatalf("expected the appended reading at index 0, got %+v", readings)
	}
}

func TestReadingRingBufferEviction(t *testing.T) {
	cfg := config.Default()
	cfg.Windows.DriftWindow = 3 // cap = 4
	s := New(cfg)
	ref, _ := s.RegisterSensor("ext-1", "z1", "soil", nil, nil)

	for i := 0; i < 10; i++ {
		v := float64(i)
		if _, err := s.AppendReading(ref, model.Reading{Moisture: &v}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	readings, _ := s.RecentReadings(ref, 100)
	if len(readings) != 4 {
		t.Fatalf("expected buffer capped at 4, got %d", len(readings))
	}
	if *readings[0].Moisture != 9 {
		t.Fatalf("expected newest-first ordering, got %v at index 0", *readings[0].Moisture)
	}
}

func TestLatestReadingPerSensorExcludesSelf(t *testing.T) {
	s := New(config.Default())
	a, _ := s.RegisterSensor("ext-a", "z1", "soil", nil, nil)
	b, _ := s.RegisterSensor("ext-b", "z1", "soil", nil, nil)
	va, vb := 10.0, 20.0
	_, _ = s.AppendReading(a, model.Reading{Moisture: &va})
	_, _ = s.AppendReading(b, model.Reading{Moisture: &vb})

	peers := s.LatestReadingPerSensor("z1", a)
	if len(peers) != 1 {
		t.Fatalf("expected exactly one peer, got %d", len(peers))
	}
	if _, ok := peers[a]; ok {
		t.Fatalf("expected the subject sensor excluded from its own peer set")
	}
	if got, ok := peers[b]; !ok || *got.Moisture != 20.0 {
		t.Fatalf("expected peer b's reading, got %+v ok=%v", got, ok)
	}
}

func TestTicketLifecycleSingleOpenSlot(t *testing.T) {
	s := New(config.Default())
	ref, _ := s.RegisterSensor("ext-1", "z1", "soil", nil, nil)

	open, err := s.OpenTicketForSensor(ref)
	if err != nil || open != nil {
		t.Fatalf("expected no open ticket initially, got %+v err=%v", open, err)
	}

	ticket := model.Ticket{TicketRef: "t-1", SensorRef: ref, Status: model.TicketOpen, Severity: model.SeverityHigh}
	if err := s.SaveTicket(ticket); err != nil {
		t.Fatalf("save ticket: %v", err)
	}
	open, err = s.OpenTicketForSensor(ref)
	if err != nil || open == nil || open.TicketRef != "t-1" {
		t.Fatalf("expected t-1 open, got %+v err=%v", open, err)
	}

	ticket.Status = model.TicketResolved
	if err := s.SaveTicket(ticket); err != nil {
		t.Fatalf("resolve ticket: %v", err)
	}
	open, err = s.OpenTicketForSensor(ref)
	if err != nil || open != nil {
		t.Fatalf("expected no open ticket after resolution, got %+v", open)
	}
}

func TestDeleteSensorCascades(t *testing.T) {
	s := New(config.Default())
	ref, _ := s.RegisterSensor("ext-1", "z1", "soil", nil, nil)
	if err := s.DeleteSensor(ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSensor(ref); !errors.Is(err, model.ErrUnknownSensor) {
		t.Fatalf("expected ErrUnknownSensor after delete, got %v", err)
	}
	// externalId is free again.
	if _, err := s.RegisterSensor("ext-1", "z1", "soil", nil, nil); err != nil {
		t.Fatalf("expected externalId reuse to succeed, got %v", err)
	}
}

func TestZoneStatistics(t *testing.T) {
	s := New(config.Default())
	a, _ := s.RegisterSensor("ext-a", "z1", "soil", nil, nil)
	_, _ = s.RegisterSensor("ext-b", "z1", "soil", nil, nil)

	stats := s.ZoneStatistics()
	if stats["z1"].Total != 2 || stats["z1"].Healthy != 2 {
		t.Fatalf("expected 2 total/healthy in z1, got %+v", stats["z1"])
	}

	_ = s.SaveTrustResult(a, model.TrustResult{Score: 0.2, Status: model.StatusAnomalous})
	stats = s.ZoneStatistics()
	if stats["z1"].Anomalous != 1 || stats["z1"].Healthy != 1 {
		t.Fatalf("expected one anomalous and one healthy, got %+v", stats["z1"])
	}
}
