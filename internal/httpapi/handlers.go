// v0
// internal/httpapi/handlers.go
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/HashimCodeDev/STVE/internal/ingest"
	"github.com/HashimCodeDev/STVE/internal/model"
)

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCoreError maps the store/ingest layer's sentinel errors to
// the appropriate HTTP status codes.
func writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownSensor), errors.Is(err, model.ErrUnknownTicket):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidReading), errors.Is(err, model.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrStoreError), errors.Is(err, model.ErrScorerError):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type registerSensorRequest struct {
	ExternalID string   `json:"externalId"`
	Zone       string   `json:"zone"`
	Type       string   `json:"type"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
}

func (s *Server) handleRegisterSensor(w http.ResponseWriter, r *http.Request) {
	var req registerSensorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ExternalID == "" || req.Zone == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "externalId, zone and type are required")
		return
	}
	sensorRef, err := s.store.RegisterSensor(req.ExternalID, req.Zone, req.Type, req.Lat, req.Lon)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sensorRef": sensorRef})
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListSensors())
}

type sensorDetail struct {
	model.Sensor
	LatestReading *model.Reading    `json:"latestReading,omitempty"`
	LatestTrust   *model.TrustResult `json:"latestTrust,omitempty"`
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	sensorRef := mux.Vars(r)["sensorRef"]
	sensor, err := s.store.GetSensor(sensorRef)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	detail := sensorDetail{Sensor: sensor}
	if readings, err := s.store.RecentReadings(sensorRef, 1); err == nil && len(readings) > 0 {
		detail.LatestReading = &readings[0]
	}
	if trust, err := s.store.RecentTrustResults(sensorRef, 1); err == nil && len(trust) > 0 {
		detail.LatestTrust = &trust[0]
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	sensorRef := mux.Vars(r)["sensorRef"]
	if err := s.store.DeleteSensor(sensorRef); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	sensorRef := mux.Vars(r)["sensorRef"]
	sensor, err := s.store.GetSensor(sensorRef)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	var payload ingest.ReadingInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.ingest.Ingest(r.Context(), sensor.ExternalID, payload)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchItemRequest struct {
	Reading ingest.ReadingInput `json:"reading"`
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	sensorRef := mux.Vars(r)["sensorRef"]
	sensor, err := s.store.GetSensor(sensorRef)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	var batch []batchItemRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	items := make([]ingest.BatchItem, len(batch))
	for i, entry := range batch {
		items[i] = ingest.BatchItem{ExternalID: sensor.ExternalID, Reading: entry.Reading}
	}
	outcomes := s.ingest.IngestBatch(r.Context(), items)
	writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) handleTrustHistory(w http.ResponseWriter, r *http.Request) {
	sensorRef := mux.Vars(r)["sensorRef"]
	limit := parseIntDefault(r.URL.Query().Get("limit"), 10)
	history, err := s.agg.GetTrustHistory(sensorRef, limit)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agg.DashboardSummary())
}

func (s *Server) handleZoneStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agg.ZoneStatistics())
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	var filter *model.TicketStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.TicketStatus(raw)
		filter = &status
	}
	writeJSON(w, http.StatusOK, s.tickets.List(filter))
}

type updateTicketRequest struct {
	Status model.TicketStatus `json:"status"`
}

func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	ticketRef := mux.Vars(r)["ticketRef"]
	var req updateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var ticket model.Ticket
	var err error
	switch req.Status {
	case model.TicketInProgress:
		ticket, err = s.tickets.Progress(ticketRef)
	case model.TicketResolved:
		ticket, err = s.tickets.Resolve(ticketRef)
	default:
		writeError(w, http.StatusBadRequest, "status must be InProgress or Resolved")
		return
	}
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
