// v0
// internal/aggregation/aggregation.go
package aggregation

import (
	"time"

	"github.com/HashimCodeDev/STVE/internal/model"
	"github.com/HashimCodeDev/STVE/internal/store"
)

// StatusCounts breaks a set of TrustResults down by their Status.
type StatusCounts struct {
	Healthy   int `json:"healthy"`
	Warning   int `json:"warning"`
	Anomalous int `json:"anomalous"`
	Total     int `json:"total"`
}

// SeverityCounts breaks a set of open diagnostics down by Severity.
type SeverityCounts struct {
	None     int `json:"none"`
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Dashboard is the payload returned by DashboardSummary. Events on the
// dashboard.update topic carry only the changed sensor's ref and status,
// not this payload.
type Dashboard struct {
	ByStatus   StatusCounts          `json:"byStatus"`
	BySeverity SeverityCounts        `json:"bySeverity"`
	Zones      map[string]ZoneCounts `json:"zones"`
	SensorsTotal int                 `json:"sensorsTotal"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// ZoneCounts mirrors store.ZoneCounts, re-exported under this package so
// callers of Aggregator never need to import store for pure read shapes.
type ZoneCounts = store.ZoneCounts

const (
	dashboardKey = "dashboard"
	zonesKey     = "zones"
)

// Aggregator answers the read-only dashboard queries that read
// directly from the Store, fronting each with a Cache entry so
// repeated dashboard polling never contends with the Store's
// per-sensor locks. Generalized from a single-purpose cache into a
// keyed one shared by the two aggregate views; GetTrustHistory is not
// cached.
type Aggregator struct {
	store *store.Store
	cache *Cache[any]
}

// New returns an Aggregator reading from s, caching each view for ttl.
func New(s *store.Store, ttl time.Duration, obs Observer) *Aggregator {
	return &Aggregator{store: s, cache: NewCache[any](ttl, obs)}
}

// DashboardSummary returns counts by status and by severity across every
// registered sensor, plus the per-zone breakdown.
func (a *Aggregator) DashboardSummary() Dashboard {
	if cached, ok := a.cache.Get(dashboardKey); ok {
		return cached.(Dashboard)
	}

	latest := a.store.LatestTrustPerSensor()
	var byStatus StatusCounts
	var bySeverity SeverityCounts
	for _, result := range latest {
		byStatus.Total++
		switch result.Status {
		case model.StatusHealthy:
			byStatus.Healthy++
		case model.StatusWarning:
			byStatus.Warning++
		case model.StatusAnomalous:
			byStatus.Anomalous++
		}
		switch result.Severity {
		case model.SeverityNone:
			bySeverity.None++
		case model.SeverityLow:
			bySeverity.Low++
		case model.SeverityMedium:
			bySeverity.Medium++
		case model.SeverityHigh:
			bySeverity.High++
		case model.SeverityCritical:
			bySeverity.Critical++
		}
	}

	dash := Dashboard{
		ByStatus:     byStatus,
		BySeverity:   bySeverity,
		Zones:        a.store.ZoneStatistics(),
		SensorsTotal: len(a.store.ListSensors()),
		GeneratedAt:  time.Now().UTC(),
	}
	a.cache.Set(dashboardKey, dash)
	return dash
}

// ZoneStatistics returns the per-zone {healthy, warning, anomalous,
// total} breakdown.
func (a *Aggregator) ZoneStatistics() map[string]ZoneCounts {
	if cached, ok := a.cache.Get(zonesKey); ok {
		return cached.(map[string]ZoneCounts)
	}
	zones := a.store.ZoneStatistics()
	a.cache.Set(zonesKey, zones)
	return zones
}

// GetTrustHistory returns up to limit TrustResults for sensorRef,
// newest-first. Not cached: the Store's own per-sensor history buffer
// is already an O(1) read and per-sensor history is read far less
// often than the two aggregate views above.
func (a *Aggregator) GetTrustHistory(sensorRef string, limit int) ([]model.TrustResult, error) {
	return a.store.RecentTrustResults(sensorRef, limit)
}
