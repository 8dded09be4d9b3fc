// v0
// internal/scorer/helpers.go
package scorer

import (
	"math"

	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/model"
)

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func firstN(vs []float64, n int) []float64 {
	if len(vs) <= n {
		return vs
	}
	return vs[:n]
}

func firstNResults(rs []model.TrustResult, n int) []model.TrustResult {
	if len(rs) <= n {
		return rs
	}
	return rs[:n]
}

// chronological reverses a newest-first slice into oldest-first order,
// the order the regression slope is defined over.
func chronological(vs []float64) []float64 {
	return reverseFloats(vs)
}

func reverseFloats(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}

// regressionSlope computes the linear-regression slope of vs (in
// chronological order) against centred indices: x_i = i - (n-1)/2. The
// degenerate case (n < 2, or a zero denominator) returns 0.
func regressionSlope(vs []float64) float64 {
	n := len(vs)
	if n < 2 {
		return 0
	}
	mid := float64(n-1) / 2
	var num, den float64
	for i, v := range vs {
		x := float64(i) - mid
		num += x * v
		den += x * x
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// valuesFor extracts the present values of parameter p from readings
// (newest-first), preserving order and skipping absent probes.
func valuesFor(p model.Parameter, readings []model.Reading) []float64 {
	out := make([]float64, 0, len(readings))
	for _, r := range readings {
		if v, ok := r.Probe(p); ok {
			out = append(out, v)
		}
	}
	return out
}

// latestValuesFor extracts each peer's latest value of parameter p,
// skipping peers where it is absent.
func latestValuesFor(p model.Parameter, peers []PeerData) []float64 {
	out := make([]float64, 0, len(peers))
	for _, peer := range peers {
		if v, ok := peer.Latest.Probe(p); ok {
			out = append(out, v)
		}
	}
	return out
}

// peerMeanChangePct is the mean, across peers, of each peer's own
// changePct of parameter p against its own history — the basis for the
// FieldEvent vs ZoneMismatch decision.
func peerMeanChangePct(cfg config.Config, p model.Parameter, peers []PeerData) float64 {
	var pcts []float64
	for _, peer := range peers {
		v, ok := peer.Latest.Probe(p)
		if !ok {
			continue
		}
		hist := firstN(valuesFor(p, peer.History), cfg.Windows.HistoryWindow)
		if len(hist) == 0 {
			continue
		}
		mu := mean(hist)
		if mu == 0 {
			continue
		}
		pcts = append(pcts, math.Abs(v-mu)/math.Abs(mu)*100)
	}
	if len(pcts) == 0 {
		return 0
	}
	return mean(pcts)
}

func peerScores(peers []PeerData) []float64 {
	out := make([]float64, 0, len(peers))
	for _, peer := range peers {
		if peer.LatestTrustScore != nil {
			out = append(out, *peer.LatestTrustScore)
		}
	}
	return out
}

func firstReading(readings []model.Reading) *model.Reading {
	if len(readings) == 0 {
		return nil
	}
	return &readings[0]
}

func dedupeCauses(causes []model.RootCause) []model.RootCause {
	seen := make(map[model.RootCause]bool, len(causes))
	out := make([]model.RootCause, 0, len(causes))
	for _, c := range causes {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
