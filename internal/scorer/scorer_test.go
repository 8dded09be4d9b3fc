// v0
// internal/scorer/scorer_test.go
package scorer

import (
	"math"
	"testing"
	"time"

	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/model"
)

func f(v float64) *float64 { return &v }
func bl(v bool) *bool      { return &v }

// alternatingHistory builds n readings, newest-first, whose chronological
// values oscillate base-amp/base+amp so the range clears static
// thresholds while the centred-index slope stays near zero.
func alternatingHistory(n int, base, amp float64, set func(*model.Reading, float64)) []model.Reading {
	out := make([]model.Reading, n)
	for i := 0; i < n; i++ {
		// out[0] is newest; chronological index = n-1-i
		chrono := n - 1 - i
		v := base - amp
		if chrono%2 == 1 {
			v = base + amp
		}
		r := model.Reading{Timestamp: time.Now().Add(-time.Duration(i+1) * time.Hour)}
		set(&r, v)
		out[i] = r
	}
	return out
}

func steadyHistory(n int) []model.Reading {
	moist := alternatingHistory(n, 30, 1, func(r *model.Reading, v float64) { r.Moisture = f(v) })
	temp := alternatingHistory(n, 22, 1, func(r *model.Reading, v float64) { r.Temperature = f(v) })
	ec := alternatingHistory(n, 1.2, 0.03, func(r *model.Reading, v float64) { r.EC = f(v) })
	ph := alternatingHistory(n, 6.5, 0.03, func(r *model.Reading, v float64) { r.PH = f(v) })
	out := make([]model.Reading, n)
	for i := range out {
		out[i] = model.Reading{
			Timestamp:   moist[i].Timestamp,
			Moisture:    moist[i].Moisture,
			Temperature: temp[i].Temperature,
			EC:          ec[i].EC,
			PH:          ph[i].PH,
		}
	}
	return out
}

func sensor(zone string) model.Sensor {
	return model.Sensor{SensorRef: "s-a", ExternalID: "A", Zone: zone, Type: "soil"}
}

func TestScoreSteadyStateHealthy(t *testing.T) {
	cfg := config.Default()
	history := steadyHistory(10)
	reading := model.Reading{
		ReadingRef:  "r-11",
		Moisture:    f(30.5),
		Temperature: f(22.1),
		EC:          f(1.22),
		PH:          f(6.5),
		Timestamp:   time.Now(),
	}

	result, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: history})
	if !ok {
		t.Fatalf("expected a verdict, got insufficient history")
	}
	if result.Score != 1.0 {
		t.Fatalf("expected score 1.0, got %v", result.Score)
	}
	if result.Status != model.StatusHealthy || result.Label != "Highly Reliable" {
		t.Fatalf("expected Healthy/Highly Reliable, got %s/%s", result.Status, result.Label)
	}
	if result.Severity != model.SeverityNone {
		t.Fatalf("expected severity None, got %s", result.Severity)
	}
	if len(result.RootCauses) != 1 || result.RootCauses[0] != model.CauseNormal {
		t.Fatalf("expected rootCauses {Normal}, got %v", result.RootCauses)
	}
}

func TestScoreStaticMoistureProbe(t *testing.T) {
	cfg := config.Default()
	history := steadyHistory(10)
	for i := range history {
		history[i].Moisture = f(42.0)
	}
	reading := model.Reading{
		ReadingRef:  "r-11",
		Moisture:    f(42.0),
		Temperature: f(22.1),
		EC:          f(1.22),
		PH:          f(6.5),
		Timestamp:   time.Now(),
	}

	result, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: history})
	if !ok {
		t.Fatalf("expected a verdict")
	}
	moisture := result.PerParameter[model.ParamMoisture]
	if moisture.TemporalCause != model.CauseStatic {
		t.Fatalf("expected Static cause, got %s", moisture.TemporalCause)
	}
	if math.Abs(moisture.Trust-0.76) > 1e-9 {
		t.Fatalf("expected moisture paramTrust 0.76, got %v", moisture.Trust)
	}
	if math.Abs(result.Score-0.94) > 1e-9 {
		t.Fatalf("expected sensor trust 0.94, got %v", result.Score)
	}
	if result.Status != model.StatusHealthy {
		t.Fatalf("expected Healthy status, got %s", result.Status)
	}
	if result.Severity != model.SeverityHigh {
		t.Fatalf("expected severity High (Static rule), got %s", result.Severity)
	}
}

func TestScoreSuddenSpikeZoneMismatch(t *testing.T) {
	cfg := config.Default()
	history := steadyHistory(10)
	reading := model.Reading{
		ReadingRef:       "r-11",
		Moisture:         f(92),
		Temperature:      f(22.1),
		EC:               f(1.22),
		PH:               f(6.5),
		IsRaining:        bl(false),
		IrrigationActive: bl(false),
		Timestamp:        time.Now(),
	}
	peers := []PeerData{
		{SensorRef: "p1", Latest: model.Reading{Moisture: f(29)}, History: steadyHistory(10)},
		{SensorRef: "p2", Latest: model.Reading{Moisture: f(31)}, History: steadyHistory(10)},
		{SensorRef: "p3", Latest: model.Reading{Moisture: f(30)}, History: steadyHistory(10)},
	}

	result, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: history, Peers: peers})
	if !ok {
		t.Fatalf("expected a verdict")
	}
	moisture := result.PerParameter[model.ParamMoisture]
	if moisture.TemporalCause != model.CauseSpike {
		t.Fatalf("expected temporal Spike, got %s", moisture.TemporalCause)
	}
	if moisture.CrossCause != model.CauseZoneMismatch {
		t.Fatalf("expected cross ZoneMismatch (stable neighbours), got %s", moisture.CrossCause)
	}
	if math.Abs(moisture.Trust-0.2) > 1e-9 {
		t.Fatalf("expected moisture paramTrust 0.2, got %v", moisture.Trust)
	}
	if result.HasCause(model.CauseFieldEvent) {
		t.Fatalf("did not expect FieldEvent when neighbours are stable")
	}
}

func TestScoreFieldEvent(t *testing.T) {
	cfg := config.Default()
	history := steadyHistory(10)
	reading := model.Reading{
		ReadingRef: "r-11",
		Moisture:   f(87),
		Timestamp:  time.Now(),
	}
	// Peers jumped together: their latest values are far from their own
	// stable history, so their mean changePct exceeds cross_normal.
	jumpedHistory := steadyHistory(10)
	peers := []PeerData{
		{SensorRef: "p1", Latest: model.Reading{Moisture: f(85)}, History: jumpedHistory},
		{SensorRef: "p2", Latest: model.Reading{Moisture: f(88)}, History: jumpedHistory},
		{SensorRef: "p3", Latest: model.Reading{Moisture: f(86)}, History: jumpedHistory},
	}

	result, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: history, Peers: peers})
	if !ok {
		t.Fatalf("expected a verdict")
	}
	moisture := result.PerParameter[model.ParamMoisture]
	if moisture.CrossCause != model.CauseFieldEvent {
		t.Fatalf("expected FieldEvent, got %s", moisture.CrossCause)
	}
	if !result.HasCause(model.CauseFieldEvent) {
		t.Fatalf("expected rootCauses to contain FieldEvent")
	}
}

func TestScoreImpossibleValue(t *testing.T) {
	cfg := config.Default()
	history := steadyHistory(10)
	reading := model.Reading{
		ReadingRef:  "r-11",
		Moisture:    f(30),
		Temperature: f(22),
		EC:          f(1.2),
		PH:          f(11.5),
		Timestamp:   time.Now(),
	}

	result, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: history})
	if !ok {
		t.Fatalf("expected a verdict")
	}
	ph := result.PerParameter[model.ParamPH]
	if ph.Physical != 0.1 {
		t.Fatalf("expected physical score 0.1, got %v", ph.Physical)
	}
	if !result.HasCause(model.CauseImpossibleValue) {
		t.Fatalf("expected ImpossibleValue root cause")
	}
	if result.Severity != model.SeverityCritical {
		t.Fatalf("expected Critical severity, got %s", result.Severity)
	}
}

func TestHealthTrendDegrading(t *testing.T) {
	cfg := config.Default()
	prior := make([]model.TrustResult, 10)
	// newest-first; chronological scores decrease 0.9 -> 0.5
	for i := 0; i < 10; i++ {
		score := 0.5 + float64(i)*(0.4/9)
		prior[i] = model.TrustResult{Score: round4(score), Status: model.StatusHealthy}
	}

	trend, slope, _ := healthTrend(cfg, prior)
	if trend != model.TrendDegrading {
		t.Fatalf("expected degrading trend, got %s (slope %v)", trend, slope)
	}
	if slope >= -0.01 {
		t.Fatalf("expected slope < -0.01, got %v", slope)
	}
}

func TestInsufficientHistory(t *testing.T) {
	cfg := config.Default()
	reading := model.Reading{Moisture: f(30)}

	if _, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: steadyHistory(4)}); ok {
		t.Fatalf("expected insufficient history with 4 priors")
	}
	if _, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: steadyHistory(5)}); !ok {
		t.Fatalf("expected a verdict with exactly 5 priors")
	}
}

func TestPhysicalBoundaryInclusive(t *testing.T) {
	cfg := config.Default()
	history := steadyHistory(10)

	atBound := model.Reading{Moisture: f(100.0), Temperature: f(22), EC: f(1.2), PH: f(6.5)}
	result, ok := Score(cfg, Input{Sensor: sensor("z1"), Reading: atBound, History: history})
	if !ok {
		t.Fatalf("expected a verdict")
	}
	if result.HasCause(model.CauseImpossibleValue) {
		t.Fatalf("moisture=100.0 should be within bounds")
	}

	overBound := model.Reading{Moisture: f(100.0001), Temperature: f(22), EC: f(1.2), PH: f(6.5)}
	result, ok = Score(cfg, Input{Sensor: sensor("z1"), Reading: overBound, History: history})
	if !ok {
		t.Fatalf("expected a verdict")
	}
	if !result.HasCause(model.CauseImpossibleValue) {
		t.Fatalf("moisture=100.0001 should be ImpossibleValue")
	}
}

func TestScoreDeterministic(t *testing.T) {
	cfg := config.Default()
	history := steadyHistory(10)
	reading := model.Reading{Moisture: f(30.5), Temperature: f(22.1), EC: f(1.22), PH: f(6.5)}

	r1, _ := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: history})
	r2, _ := Score(cfg, Input{Sensor: sensor("z1"), Reading: reading, History: history})
	if r1.Score != r2.Score {
		t.Fatalf("expected deterministic score, got %v vs %v", r1.Score, r2.Score)
	}
}
