// v0
// internal/store/store.go
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/model"
)

// sensorRecord bundles a registered Sensor with its bounded history
// ring buffers and ticket state. One record exists per sensor and is
// only ever touched while holding Store.mu.
type sensorRecord struct {
	sensor       model.Sensor
	readings     []model.Reading     // newest-first, capped at driftWindow+1
	trustResults []model.TrustResult // newest-first, capped at trendWindow
	openTicket   *model.Ticket
	tickets      []model.Ticket // all tickets ever opened for this sensor
}

// Store is the engine's single stateful collaborator: an in-memory,
// mutex-guarded map of sensors plus a zone index, generalizing a
// mutex-plus-index-map store over a JSON-line file and a bounded
// per-key slice with eviction into one type
// that serves both the write path and the Scorer's read path. Every
// method is individually atomic; the Ingestor composes several calls
// under its own per-sensor lock to get ingest-then-score-then-persist
// atomicity.
type Store struct {
	mu           sync.RWMutex
	sensors      map[string]*sensorRecord // keyed by sensorRef
	externalIDs  map[string]string        // externalId -> sensorRef, for DuplicateId checks
	zoneIndex    map[string]map[string]bool // zone -> set of sensorRef
	readingCap   int
	trendCap     int
	readingSeq   uint64
	ticketSeq    uint64
}

// New returns an empty Store, capping per-sensor history at
// cfg.Windows.DriftWindow+1 readings and cfg.Windows.TrendWindow trust
// results.
func New(cfg config.Config) *Store {
	return &Store{
		sensors:     make(map[string]*sensorRecord),
		externalIDs: make(map[string]string),
		zoneIndex:   make(map[string]map[string]bool),
		readingCap:  cfg.Windows.DriftWindow + 1,
		trendCap:    cfg.Windows.TrendWindow,
	}
}

// RegisterSensor creates a new sensor record and seeds it with an
// initial TrustResult of {score: 1.0, status: Healthy}. Returns
// model.ErrDuplicateID if externalID is already
// registered.
func (s *Store) RegisterSensor(externalID, zone, sensorType string, lat, lon *float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.externalIDs[externalID]; exists {
		return "", model.ErrDuplicateID
	}

	sensorRef := uuid.NewString()
	sensor := model.Sensor{
		SensorRef:  sensorRef,
		ExternalID: externalID,
		Zone:       zone,
		Type:       sensorType,
		Lat:        lat,
		Lon:        lon,
		CreatedAt:  time.Now().UTC(),
	}

	s.sensors[sensorRef] = &sensorRecord{
		sensor: sensor,
		trustResults: []model.TrustResult{{
			TrustRef:    uuid.NewString(),
			SensorRef:   sensorRef,
			Score:       1.0,
			Status:      model.StatusHealthy,
			Label:       "Highly Reliable",
			Severity:    model.SeverityNone,
			RootCauses:  []model.RootCause{model.CauseNormal},
			HealthTrend: model.TrendUnknown,
			EvaluatedAt: sensor.CreatedAt,
		}},
	}
	s.externalIDs[externalID] = sensorRef
	s.indexZone(zone, sensorRef)

	return sensorRef, nil
}

func (s *Store) indexZone(zone, sensorRef string) {
	set, ok := s.zoneIndex[zone]
	if !ok {
		set = make(map[string]bool)
		s.zoneIndex[zone] = set
	}
	set[sensorRef] = true
}

func (s *Store) unindexZone(zone, sensorRef string) {
	if set, ok := s.zoneIndex[zone]; ok {
		delete(set, sensorRef)
		if len(set) == 0 {
			delete(s.zoneIndex, zone)
		}
	}
}

// ResolveSensorRef maps an externally-facing sensor id to its internal
// sensorRef, or model.ErrUnknownSensor.
func (s *Store) ResolveSensorRef(externalID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.externalIDs[externalID]
	if !ok {
		return "", model.ErrUnknownSensor
	}
	return ref, nil
}

// GetSensor returns the sensor for sensorRef, or model.ErrUnknownSensor.
func (s *Store) GetSensor(sensorRef string) (model.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sensors[sensorRef]
	if !ok {
		return model.Sensor{}, model.ErrUnknownSensor
	}
	return rec.sensor, nil
}

// ListSensors returns every registered sensor, order unspecified.
func (s *Store) ListSensors() []model.Sensor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Sensor, 0, len(s.sensors))
	for _, rec := range s.sensors {
		out = append(out, rec.sensor)
	}
	return out
}

// DeleteSensor hard-deletes a sensor and cascades to its readings,
// trust results and tickets. Not reachable from the diagnostic
// pipeline; supports test fixtures and admin cleanup.
func (s *Store) DeleteSensor(sensorRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sensors[sensorRef]
	if !ok {
		return model.ErrUnknownSensor
	}
	s.unindexZone(rec.sensor.Zone, sensorRef)
	delete(s.externalIDs, rec.sensor.ExternalID)
	delete(s.sensors, sensorRef)
	return nil
}

// AppendReading persists a new reading for sensorRef, evicting the
// oldest buffered reading once the cap is reached. Returns the
// generated readingRef, or model.ErrUnknownSensor.
func (s *Store) AppendReading(sensorRef string, reading model.Reading) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sensors[sensorRef]
	if !ok {
		return "", model.ErrUnknownSensor
	}

	s.readingSeq++
	reading.ReadingRef = uuid.NewString()
	reading.SensorRef = sensorRef
	if reading.ReceivedAt.IsZero() {
		reading.ReceivedAt = time.Now().UTC()
	}

	rec.readings = prependCapped(rec.readings, reading, s.readingCap)
	return reading.ReadingRef, nil
}

// RecentReadings returns up to n readings for sensorRef, newest-first.
func (s *Store) RecentReadings(sensorRef string, n int) ([]model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sensors[sensorRef]
	if !ok {
		return nil, model.ErrUnknownSensor
	}
	return cloneReadings(capSlice(rec.readings, n)), nil
}

// LatestReadingPerSensor returns every other sensor's latest reading in
// zone, used by the Scorer for cross-zone correlation.
func (s *Store) LatestReadingPerSensor(zone, excludingSensorRef string) map[string]model.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Reading)
	for sensorRef := range s.zoneIndex[zone] {
		if sensorRef == excludingSensorRef {
			continue
		}
		rec := s.sensors[sensorRef]
		if rec == nil || len(rec.readings) == 0 {
			continue
		}
		out[sensorRef] = rec.readings[0]
	}
	return out
}

// RecentReadingsBySensor returns, for every other sensor in zone, up to
// n of its own readings newest-first. Used to decide field-event vs
// fault (the cross-zone axis's field-event-vs-fault distinction).
func (s *Store) RecentReadingsBySensor(zone, excludingSensorRef string, n int) map[string][]model.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.Reading)
	for sensorRef := range s.zoneIndex[zone] {
		if sensorRef == excludingSensorRef {
			continue
		}
		rec := s.sensors[sensorRef]
		if rec == nil {
			continue
		}
		out[sensorRef] = cloneReadings(capSlice(rec.readings, n))
	}
	return out
}

// RecentTrustResults returns up to n TrustResults for sensorRef,
// newest-first.
func (s *Store) RecentTrustResults(sensorRef string, n int) ([]model.TrustResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sensors[sensorRef]
	if !ok {
		return nil, model.ErrUnknownSensor
	}
	return cloneTrustResults(capSlice(rec.trustResults, n)), nil
}

// SaveTrustResult appends a TrustResult for sensorRef, append-only.
func (s *Store) SaveTrustResult(sensorRef string, result model.TrustResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sensors[sensorRef]
	if !ok {
		return model.ErrUnknownSensor
	}
	if result.TrustRef == "" {
		result.TrustRef = uuid.NewString()
	}
	rec.trustResults = prependCapped(rec.trustResults, result, s.trendCap)
	return nil
}

// LatestTrustPerSensor returns every sensor's most recent TrustResult,
// for the dashboard aggregate.
func (s *Store) LatestTrustPerSensor() map[string]model.TrustResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.TrustResult, len(s.sensors))
	for sensorRef, rec := range s.sensors {
		if len(rec.trustResults) > 0 {
			out[sensorRef] = rec.trustResults[0]
		}
	}
	return out
}

// OpenTicketForSensor returns the Open ticket for sensorRef, if any.
func (s *Store) OpenTicketForSensor(sensorRef string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sensors[sensorRef]
	if !ok {
		return nil, model.ErrUnknownSensor
	}
	if rec.openTicket == nil {
		return nil, nil
	}
	t := *rec.openTicket
	return &t, nil
}

// SaveTicket upserts ticket. If it transitions out of Open, the
// per-sensor open-ticket slot is cleared so a later onAnomalous may
// open a fresh ticket.
func (s *Store) SaveTicket(ticket model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sensors[ticket.SensorRef]
	if !ok {
		return model.ErrUnknownSensor
	}

	found := false
	for i, existing := range rec.tickets {
		if existing.TicketRef == ticket.TicketRef {
			rec.tickets[i] = ticket
			found = true
			break
		}
	}
	if !found {
		rec.tickets = append(rec.tickets, ticket)
	}

	if ticket.Status == model.TicketOpen {
		rec.openTicket = &ticket
	} else if rec.openTicket != nil && rec.openTicket.TicketRef == ticket.TicketRef {
		rec.openTicket = nil
	}
	return nil
}

// ListTickets returns every ticket across all sensors, optionally
// filtered by status.
func (s *Store) ListTickets(statusFilter *model.TicketStatus) []model.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Ticket
	for _, rec := range s.sensors {
		for _, t := range rec.tickets {
			if statusFilter != nil && t.Status != *statusFilter {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// GetTicket finds a ticket by ref across all sensors.
func (s *Store) GetTicket(ticketRef string) (model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.sensors {
		for _, t := range rec.tickets {
			if t.TicketRef == ticketRef {
				return t, nil
			}
		}
	}
	return model.Ticket{}, model.ErrUnknownTicket
}

// ZoneCounts is the per-zone health breakdown returned by
// ZoneStatistics.
type ZoneCounts struct {
	Healthy   int
	Warning   int
	Anomalous int
	Total     int
}

// ZoneStatistics groups each sensor's latest TrustResult by zone. It is
// a read view over LatestTrustPerSensor joined against sensor zones —
// specified in the Store because only the Store can make that join
// efficiently.
func (s *Store) ZoneStatistics() map[string]ZoneCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ZoneCounts)
	for sensorRef, rec := range s.sensors {
		_ = sensorRef
		zone := rec.sensor.Zone
		counts := out[zone]
		counts.Total++
		if len(rec.trustResults) > 0 {
			switch rec.trustResults[0].Status {
			case model.StatusHealthy:
				counts.Healthy++
			case model.StatusWarning:
				counts.Warning++
			case model.StatusAnomalous:
				counts.Anomalous++
			}
		}
		out[zone] = counts
	}
	return out
}

func prependCapped[T any](buf []T, v T, cap int) []T {
	buf = append([]T{v}, buf...)
	if len(buf) > cap {
		buf = buf[:cap]
	}
	return buf
}

func capSlice[T any](buf []T, n int) []T {
	if n <= 0 || n > len(buf) {
		return buf
	}
	return buf[:n]
}

func cloneReadings(in []model.Reading) []model.Reading {
	out := make([]model.Reading, len(in))
	copy(out, in)
	return out
}

func cloneTrustResults(in []model.TrustResult) []model.TrustResult {
	out := make([]model.TrustResult, len(in))
	copy(out, in)
	return out
}
