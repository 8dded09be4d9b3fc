// v0
// internal/model/model.go
package model

import "time"

// Status is the banded trust classification of a TrustResult.
type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusWarning   Status = "Warning"
	StatusAnomalous Status = "Anomalous"
)

// Severity is the ticket/diagnostic urgency tag, ordered None < Low <
// Medium < High < Critical.
type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// severityRank gives the total order used by severity comparisons
// (ticket monotonic raise, the None<...<Critical property tests).
var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// MaxSeverity returns the higher-ranked of the two severities, implementing
// the ticket manager's monotonic-raise policy.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Less reports whether a is strictly lower urgency than b.
func (s Severity) Less(other Severity) bool {
	return severityRank[s] < severityRank[other]
}

// RootCause is a tag drawn from the closed diagnostic cause set.
type RootCause string

const (
	CauseNormal          RootCause = "Normal"
	CauseSpike           RootCause = "Spike"
	CauseStatic          RootCause = "Static"
	CauseDrift           RootCause = "Drift"
	CauseZoneMismatch    RootCause = "ZoneMismatch"
	CauseWeatherMismatch RootCause = "WeatherMismatch"
	CauseFieldEvent      RootCause = "FieldEvent"
	CauseImpossibleValue RootCause = "ImpossibleValue"
)

// HealthTrend classifies the slope of a sensor's recent trust history.
type HealthTrend string

const (
	TrendImproving HealthTrend = "improving"
	TrendDegrading HealthTrend = "degrading"
	TrendStable    HealthTrend = "stable"
	TrendUnknown   HealthTrend = "unknown"
)

// Parameter identifies one of the four probes every reading may carry.
type Parameter string

const (
	ParamMoisture    Parameter = "moisture"
	ParamTemperature Parameter = "temperature"
	ParamEC          Parameter = "ec"
	ParamPH          Parameter = "ph"
)

// Parameters lists the four probes in the fixed order used wherever
// per-parameter results must be iterated deterministically.
var Parameters = []Parameter{ParamMoisture, ParamTemperature, ParamEC, ParamPH}

// Sensor is an agricultural soil probe registered with the engine.
// Immutable once created except Zone, which an operator may reassign.
type Sensor struct {
	SensorRef  string  `json:"sensorRef"`
	ExternalID string  `json:"externalId"`
	Zone       string  `json:"zone"`
	Type       string  `json:"type"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`

	// BatteryLevel is a supplemental dashboard field (percentage, 0-100).
	// Never consulted by the Scorer.
	BatteryLevel *float64 `json:"batteryLevel,omitempty"`
}

// Reading is one append-only sample from a Sensor. All four probes are
// optional; absent probes are simply skipped by the Scorer.
type Reading struct {
	ReadingRef string    `json:"readingRef"`
	SensorRef  string    `json:"sensorRef"`
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`

	Moisture    *float64 `json:"moisture,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	EC          *float64 `json:"ec,omitempty"`
	PH          *float64 `json:"ph,omitempty"`

	AirTemp          *float64 `json:"airTemp,omitempty"`
	IsRaining        *bool    `json:"isRaining,omitempty"`
	IrrigationActive *bool    `json:"irrigationActive,omitempty"`
}

// Probe returns the current value of p in this reading, or (0, false) if
// absent.
func (r Reading) Probe(p Parameter) (float64, bool) {
	var v *float64
	switch p {
	case ParamMoisture:
		v = r.Moisture
	case ParamTemperature:
		v = r.Temperature
	case ParamEC:
		v = r.EC
	case ParamPH:
		v = r.PH
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// ParamAxes carries the three sub-scores and the causes they resolved to
// for a single parameter of a single reading.
type ParamAxes struct {
	Temporal       float64     `json:"temporal"`
	TemporalCause  RootCause   `json:"temporalCause"`
	Cross          float64     `json:"cross"`
	CrossCause     RootCause   `json:"crossCause"`
	Physical       float64     `json:"physical"`
	PhysicalCauses []RootCause `json:"physicalCauses,omitempty"`
	Trust          float64     `json:"trust"`
}

// TrustResult is the verdict produced by the Scorer for one reading.
type TrustResult struct {
	TrustRef   string `json:"trustRef"`
	SensorRef  string `json:"sensorRef"`
	ReadingRef string `json:"readingRef"`

	Score    float64  `json:"score"`
	Status   Status   `json:"status"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`

	PerParameter map[Parameter]ParamAxes `json:"perParameter,omitempty"`
	RootCauses   []RootCause             `json:"rootCauses"`

	HealthTrend HealthTrend `json:"healthTrend"`
	Slope       float64     `json:"slope"`
	AnomalyRate float64     `json:"anomalyRate"`

	IrrigationSafe        bool     `json:"irrigationSafe"`
	FailurePrediction     *string  `json:"failurePrediction,omitempty"`
	ConfidenceLevel       float64  `json:"confidenceLevel"`
	ZoneReliability       *float64 `json:"zoneReliability,omitempty"`
	SustainabilityInsight *string  `json:"sustainabilityInsight,omitempty"`
	AlertTag              *string  `json:"alertTag,omitempty"`
	Summary               *string  `json:"summary,omitempty"`

	Flags []string `json:"flags,omitempty"`

	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// HasCause reports whether rootCauses contains c.
func (t TrustResult) HasCause(c RootCause) bool {
	for _, rc := range t.RootCauses {
		if rc == c {
			return true
		}
	}
	return false
}

// TicketStatus is the lifecycle state of a maintenance Ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "Open"
	TicketInProgress TicketStatus = "InProgress"
	TicketResolved   TicketStatus = "Resolved"
)

// Ticket is a maintenance record opened when a sensor is deemed
// Anomalous for reasons other than a field event. At most one Open
// ticket exists per sensor at any time.
type Ticket struct {
	TicketRef  string       `json:"ticketRef"`
	SensorRef  string       `json:"sensorRef"`
	Issue      string       `json:"issue"`
	Severity   Severity     `json:"severity"`
	Status     TicketStatus `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	ResolvedAt *time.Time   `json:"resolvedAt,omitempty"`
}
