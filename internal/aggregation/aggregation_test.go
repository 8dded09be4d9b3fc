// v0
// internal/aggregation/aggregation_test.go
package aggregation

import (
	"testing"
	"time"

	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/model"
	"github.com/HashimCodeDev/STVE/internal/store"
)

func TestDashboardSummaryCountsByStatusAndZone(t *testing.T) {
	s := store.New(config.Default())
	refA, _ := s.RegisterSensor("ext-a", "north", "soil", nil, nil)
	refB, _ := s.RegisterSensor("ext-b", "north", "soil", nil, nil)

	_ = s.SaveTrustResult(refA, model.TrustResult{Score: 0.9, Status: model.StatusHealthy, Severity: model.SeverityNone})
	_ = s.SaveTrustResult(refB, model.TrustResult{Score: 0.4, Status: model.StatusAnomalous, Severity: model.SeverityHigh})

	agg := New(s, time.Minute, nil)
	dash := agg.DashboardSummary()

	if dash.SensorsTotal != 2 {
		t.Fatalf("expected sensorsTotal 2, got %d", dash.SensorsTotal)
	}
	if dash.ByStatus.Healthy != 1 || dash.ByStatus.Anomalous != 1 {
		t.Fatalf("expected 1 healthy and 1 anomalous, got %+v", dash.ByStatus)
	}
	if dash.BySeverity.High != 1 {
		t.Fatalf("expected 1 high severity, got %+v", dash.BySeverity)
	}
	zone := dash.Zones["north"]
	if zone.Total != 2 || zone.Healthy != 1 || zone.Anomalous != 1 {
		t.Fatalf("expected north zone {total:2 healthy:1 anomalous:1}, got %+v", zone)
	}
}

func TestDashboardSummaryIsCachedWithinTTL(t *testing.T) {
	s := store.New(config.Default())
	ref, _ := s.RegisterSensor("ext-a", "north", "soil", nil, nil)

	agg := New(s, time.Hour, nil)
	first := agg.DashboardSummary()

	_ = s.SaveTrustResult(ref, model.TrustResult{Score: 0.1, Status: model.StatusAnomalous})
	second := agg.DashboardSummary()

	if second.GeneratedAt != first.GeneratedAt {
		t.Fatalf("expected the cached dashboard to be returned unchanged within the TTL")
	}
	if second.ByStatus.Anomalous != 0 {
		t.Fatalf("expected the stale cached counts, got %+v", second.ByStatus)
	}
}

func TestDashboardSummaryRefreshesAfterTTLExpires(t *testing.T) {
	s := store.New(config.Default())
	ref, _ := s.RegisterSensor("ext-a", "north", "soil", nil, nil)

	agg := New(s, 5*time.Millisecond, nil)
	_ = agg.DashboardSummary()

	_ = s.SaveTrustResult(ref, model.TrustResult{Score: 0.1, Status: model.StatusAnomalous})
	time.Sleep(10 * time.Millisecond)

	refreshed := agg.DashboardSummary()
	if refreshed.ByStatus.Anomalous != 1 {
		t.Fatalf("expected the refreshed dashboard to see the new anomalous sensor, got %+v", refreshed.ByStatus)
	}
}

func TestZoneStatisticsGroupsByZone(t *testing.T) {
	s := store.New(config.Default())
	refA, _ := s.RegisterSensor("ext-a", "north", "soil", nil, nil)
	refB, _ := s.RegisterSensor("ext-b", "south", "soil", nil, nil)
	_ = s.SaveTrustResult(refA, model.TrustResult{Status: model.StatusWarning})
	_ = s.SaveTrustResult(refB, model.TrustResult{Status: model.StatusHealthy})

	agg := New(s, time.Minute, nil)
	zones := agg.ZoneStatistics()

	if zones["north"].Warning != 1 {
		t.Fatalf("expected north zone to have 1 warning, got %+v", zones["north"])
	}
	if zones["south"].Healthy != 1 {
		t.Fatalf("expected south zone to have 1 healthy, got %+v", zones["south"])
	}
}

func TestGetTrustHistoryReturnsNewestFirstUpToLimit(t *testing.T) {
	s := store.New(config.Default())
	ref, _ := s.RegisterSensor("ext-a", "north", "soil", nil, nil)
	for i := 0; i < 5; i++ {
		_ = s.SaveTrustResult(ref, model.TrustResult{Score: float64(i)})
	}

	agg := New(s, time.Minute, nil)
	history, err := agg.GetTrustHistory(ref, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 results, got %d", len(history))
	}
	if history[0].Score != 4 || history[1].Score != 3 || history[2].Score != 2 {
		t.Fatalf("expected newest-first ordering, got %+v", history)
	}
}

func TestGetTrustHistoryUnknownSensor(t *testing.T) {
	s := store.New(config.Default())
	agg := New(s, time.Minute, nil)
	if _, err := agg.GetTrustHistory("missing", 10); err != model.ErrUnknownSensor {
		t.Fatalf("expected ErrUnknownSensor, got %v", err)
	}
}
