// v0
// internal/scorer/scorer.go
package scorer

import (
	"fmt"
	"math"
	"time"

	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/model"
)

// PeerData is the cross-zone context for one other sensor in the same
// zone: its latest reading, its own recent history (newest-first, used
// to distinguish a fault from a field event), and its latest trust
// score if one has been computed yet.
type PeerData struct {
	SensorRef        string
	Latest           model.Reading
	History          []model.Reading
	LatestTrustScore *float64
}

// Input is everything the Scorer needs to produce a verdict for one
// reading. History slices are newest-first. The Scorer reads this and
// nothing else — no store access, no clock reads for scoring math, no
// randomness.
type Input struct {
	Sensor  model.Sensor
	Reading model.Reading

	// History holds up to Windows.DriftWindow prior readings of this
	// sensor, newest-first, excluding the current reading.
	History []model.Reading

	Peers []PeerData

	// PriorResults holds up to Windows.TrendWindow prior TrustResults of
	// this sensor, newest-first.
	PriorResults []model.TrustResult
}

// Score computes the trust verdict for input.Reading. It is a pure
// function: identical inputs yield byte-identical outputs (scores
// rounded to four fractional digits). The bool return is false when the
// sensor has fewer than five prior readings — in that case the verdict
// is nil and the caller persists nothing beyond the reading itself.
func Score(cfg config.Config, in Input) (*model.TrustResult, bool) {
	if len(in.History) < 5 {
		return nil, false
	}

	now := time.Now().UTC()
	perParam := make(map[model.Parameter]model.ParamAxes)
	var flags []string
	var allCauses []model.RootCause

	physScore, physCauses := physicalAxis(cfg, in.Reading, firstReading(in.History))

	var sum float64
	var n int

	for _, p := range model.Parameters {
		v, ok := in.Reading.Probe(p)
		if !ok {
			continue
		}

		tScore, tCause := temporalAxis(cfg, p, v, valuesFor(p, in.History))
		cScore, cCause := crossAxis(cfg, p, v, in.Peers)

		trust := round4(cfg.Weights.Temporal*tScore + cfg.Weights.Cross*cScore + cfg.Weights.Physical*physScore)

		perParam[p] = model.ParamAxes{
			Temporal:       tScore,
			TemporalCause:  tCause,
			Cross:          cScore,
			CrossCause:     cCause,
			Physical:       physScore,
			PhysicalCauses: physCauses,
			Trust:          trust,
		}

		sum += trust
		n++

		if tCause != model.CauseNormal {
			allCauses = append(allCauses, tCause)
			flags = append(flags, fmt.Sprintf("%s: %s (temporal)", p, tCause))
		}
		if cCause != model.CauseNormal {
			allCauses = append(allCauses, cCause)
			flags = append(flags, fmt.Sprintf("%s: %s (cross-zone)", p, cCause))
		}
	}
	allCauses = append(allCauses, physCauses...)
	for _, c := range physCauses {
		flags = append(flags, fmt.Sprintf("physical: %s", c))
	}

	var score float64
	if n > 0 {
		score = round4(sum / float64(n))
	}

	rootCauses := dedupeCauses(allCauses)
	if len(rootCauses) == 0 {
		rootCauses = []model.RootCause{model.CauseNormal}
	}

	status, label := band(cfg, score)
	severity := classifySeverity(rootCauses, score)
	trend, slope, anomalyRate := healthTrend(cfg, in.PriorResults)

	result := &model.TrustResult{
		SensorRef:    in.Sensor.SensorRef,
		ReadingRef:   in.Reading.ReadingRef,
		Score:        score,
		Status:       status,
		Label:        label,
		Severity:     severity,
		PerParameter: perParam,
		RootCauses:   rootCauses,
		HealthTrend:  trend,
		Slope:        slope,
		AnomalyRate:  anomalyRate,
		Flags:        flags,
		EvaluatedAt:  now,
	}

	applyDecisionOutputs(cfg, result, in)
	return result, true
}

// temporalAxis scores parameter p against the sensor's own history.
//
//   - fewer than two prior values             -> 1.0, Normal
//   - range(last historyWindow) < staticThreshold(p)      -> 0.2, Static
//   - |slope(last driftWindow)| > driftThreshold(p)       -> 0.4, Drift
//   - otherwise band changePct = |v-mean|/|mean|*100 against
//     temporalThresholds(p): <=normal -> 1.0 Normal; <=moderate -> 0.6
//     Spike; else -> 0.1 Spike. mean==0 short-circuits to 1.0 Normal.
func temporalAxis(cfg config.Config, p model.Parameter, v float64, history []float64) (float64, model.RootCause) {
	hw := firstN(history, cfg.Windows.HistoryWindow)
	if len(hw) < 2 {
		return 1.0, model.CauseNormal
	}

	if rng := maxOf(hw) - minOf(hw); rng < cfg.StaticThresholds[p] {
		return 0.2, model.CauseStatic
	}

	dw := firstN(history, cfg.Windows.DriftWindow)
	if len(dw) >= 5 {
		if slope := regressionSlope(chronological(dw)); math.Abs(slope) > cfg.DriftThresholds[p] {
			return 0.4, model.CauseDrift
		}
	}

	mu := mean(hw)
	if mu == 0 {
		return 1.0, model.CauseNormal
	}
	changePct := math.Abs(v-mu) / math.Abs(mu) * 100
	band := cfg.TemporalThresholds[p]
	switch {
	case changePct <= band.Normal:
		return 1.0, model.CauseNormal
	case changePct <= band.Moderate:
		return 0.6, model.CauseSpike
	default:
		return 0.1, model.CauseSpike
	}
}

// crossAxis scores parameter p against peers' latest values in the same
// zone. No peers, or a zero peer mean, both short-circuit to 1.0 Normal.
// Deviation within crossThresholds(p).Normal is Normal. Deviation beyond
// crossThresholds(p).Moderate is "extreme": the mean of each peer's own
// changePct against its own history decides whether all peers moved
// together (FieldEvent, 0.5) or this sensor alone did (ZoneMismatch,
// 0.1), per the resolved open question that the threshold for that
// comparison is crossThresholds(p).Normal. Deviation between the two
// bands is treated as a milder version of the same peer-mean check,
// banded at 0.6 (FieldEvent or Spike) to mirror the temporal axis's
// three-tier shape.
func crossAxis(cfg config.Config, p model.Parameter, v float64, peers []PeerData) (float64, model.RootCause) {
	peerVals := latestValuesFor(p, peers)
	if len(peerVals) == 0 {
		return 1.0, model.CauseNormal
	}
	muZ := mean(peerVals)
	if muZ == 0 {
		return 1.0, model.CauseNormal
	}

	devPct := math.Abs(v-muZ) / math.Abs(muZ) * 100
	band := cfg.CrossThresholds[p]
	if devPct <= band.Normal {
		return 1.0, model.CauseNormal
	}

	peerMeanChange := peerMeanChangePct(cfg, p, peers)
	fieldEvent := peerMeanChange > band.Normal

	if devPct <= band.Moderate {
		if fieldEvent {
			return 0.6, model.CauseFieldEvent
		}
		return 0.6, model.CauseSpike
	}

	if fieldEvent {
		return 0.5, model.CauseFieldEvent
	}
	return 0.1, model.CauseZoneMismatch
}

// physicalAxis is computed once per reading and shared across all four
// parameters. Any probe outside its hard bounds short-circuits to 0.1
// with cause ImpossibleValue. Otherwise the axis starts at 1.0 and
// subtracts configured penalties, floored at 0.1.
func physicalAxis(cfg config.Config, r model.Reading, prev *model.Reading) (float64, []model.RootCause) {
	for _, p := range model.Parameters {
		v, ok := r.Probe(p)
		if !ok {
			continue
		}
		b := cfg.PhysicalLimits[p]
		if v < b.Min || v > b.Max {
			return 0.1, []model.RootCause{model.CauseImpossibleValue}
		}
	}

	score := 1.0
	var causes []model.RootCause

	if moisture, ok := r.Probe(model.ParamMoisture); ok && moisture > 85 {
		raining := r.IsRaining != nil && *r.IsRaining
		irrigating := r.IrrigationActive != nil && *r.IrrigationActive
		if !raining && !irrigating {
			score -= cfg.PhysicalPenalties.HighMoistureNoRain
			causes = append(causes, model.CauseWeatherMismatch)
		}
	}

	if temp, ok := r.Probe(model.ParamTemperature); ok && r.AirTemp != nil {
		if math.Abs(temp-*r.AirTemp) > 10 {
			score -= cfg.PhysicalPenalties.SoilAirTempGap
			causes = append(causes, model.CauseWeatherMismatch)
		}
	}

	if prev != nil {
		if ph, ok := r.Probe(model.ParamPH); ok {
			if prevPh, ok := prev.Probe(model.ParamPH); ok {
				if math.Abs(ph-prevPh) > 1.5 {
					score -= cfg.PhysicalPenalties.PHJump
					causes = append(causes, model.CauseSpike)
				}
			}
		}
		if ec, ok := r.Probe(model.ParamEC); ok {
			if prevEc, ok := prev.Probe(model.ParamEC); ok && prevEc != 0 {
				if math.Abs(ec-prevEc)/math.Abs(prevEc)*100 > 25 {
					score -= cfg.PhysicalPenalties.ECSpike
					causes = append(causes, model.CauseSpike)
				}
			}
		}
	}

	if score < 0.1 {
		score = 0.1
	}
	return score, causes
}

// band assigns status/label by descending score thresholds.
func band(cfg config.Config, score float64) (model.Status, string) {
	b := cfg.TrustBands
	switch {
	case score >= b.HighlyReliable:
		return model.StatusHealthy, "Highly Reliable"
	case score >= b.Reliable:
		return model.StatusHealthy, "Reliable"
	case score >= b.Uncertain:
		return model.StatusWarning, "Uncertain"
	case score >= b.Unreliable:
		return model.StatusAnomalous, "Unreliable"
	default:
		return model.StatusAnomalous, "Anomaly"
	}
}

// classifySeverity applies the first-match-wins severity table.
func classifySeverity(causes []model.RootCause, score float64) model.Severity {
	has := func(c model.RootCause) bool {
		for _, rc := range causes {
			if rc == c {
				return true
			}
		}
		return false
	}
	switch {
	case has(model.CauseImpossibleValue):
		return model.SeverityCritical
	case score < 0.15:
		return model.SeverityCritical
	case has(model.CauseZoneMismatch) && score < 0.5:
		return model.SeverityHigh
	case has(model.CauseSpike) && score < 0.5:
		return model.SeverityHigh
	case has(model.CauseStatic):
		return model.SeverityHigh
	case has(model.CauseDrift):
		return model.SeverityMedium
	case has(model.CauseWeatherMismatch):
		return model.SeverityMedium
	case score < 0.65:
		return model.SeverityLow
	default:
		return model.SeverityNone
	}
}

// healthTrend computes the trend/slope/anomalyRate triple from the
// sensor's prior TrustResults (newest-first). Fewer than three results
// yields unknown/0.
func healthTrend(cfg config.Config, prior []model.TrustResult) (model.HealthTrend, float64, float64) {
	window := firstNResults(prior, cfg.Windows.TrendWindow)
	if len(window) < 3 {
		return model.TrendUnknown, 0, 0
	}

	scores := make([]float64, len(window))
	var anomalous int
	for i, r := range window {
		scores[i] = r.Score
		if r.Status == model.StatusAnomalous {
			anomalous++
		}
	}
	slope := regressionSlope(reverseFloats(scores))
	anomalyRate := round4(float64(anomalous) / float64(len(window)))

	switch {
	case slope > 0.01:
		return model.TrendImproving, slope, anomalyRate
	case slope < -0.01:
		return model.TrendDegrading, slope, anomalyRate
	default:
		return model.TrendStable, slope, anomalyRate
	}
}

// applyDecisionOutputs fills in the score-derived decision fields of
// result in place.
func applyDecisionOutputs(cfg config.Config, result *model.TrustResult, in Input) {
	result.IrrigationSafe = result.Score >= 0.75 &&
		!result.HasCause(model.CauseImpossibleValue) &&
		!result.HasCause(model.CauseZoneMismatch)

	if result.Slope < -0.03 || (result.HealthTrend == model.TrendDegrading && result.AnomalyRate > 0.3) {
		msg := "Rapid degradation detected; sensor trust is declining and may require replacement"
		result.FailurePrediction = &msg
	}

	switch {
	case result.Score > 0.85:
		result.ConfidenceLevel = 0.9
	case result.Score > 0.70:
		result.ConfidenceLevel = 0.6
	default:
		result.ConfidenceLevel = 0.3
	}

	if scores := peerScores(in.Peers); len(scores) > 0 {
		z := round4(mean(scores))
		result.ZoneReliability = &z
	}

	if in.Reading.IrrigationActive != nil && *in.Reading.IrrigationActive && !result.IrrigationSafe {
		msg := "Irrigation active despite low trust score; pause irrigation until the sensor is verified"
		result.SustainabilityInsight = &msg
	}

	switch result.Severity {
	case model.SeverityCritical:
		tag := "Immediate attention required"
		result.AlertTag = &tag
	case model.SeverityHigh:
		tag := "Urgent maintenance required"
		result.AlertTag = &tag
	case model.SeverityMedium:
		tag := "Monitor sensor"
		result.AlertTag = &tag
	}
}
