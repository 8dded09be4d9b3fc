// v0
// internal/ingest/ingestor.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HashimCodeDev/STVE/internal/broadcast"
	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/keyedlock"
	"github.com/HashimCodeDev/STVE/internal/metrics"
	"github.com/HashimCodeDev/STVE/internal/model"
	"github.com/HashimCodeDev/STVE/internal/scorer"
	"github.com/HashimCodeDev/STVE/internal/store"
	"github.com/HashimCodeDev/STVE/internal/tickets"
)

// Summariser produces a natural-language explanation of a TrustResult.
// Satisfied by summary.Client; declared here so the Ingestor depends
// on the narrow interface it actually calls, not the concrete HTTP
// client — the summariser is best-effort and never on the critical
// path, so a nil Summariser simply disables it.
type Summariser interface {
	Summarise(ctx context.Context, result model.TrustResult) (string, error)
}

// Result is what Ingest returns: the persisted reading's ref, and the
// TrustResult produced for it, or nil when the sensor had fewer than
// five prior readings (an "insufficient history" case).
type Result struct {
	ReadingRef  string             `json:"readingRef"`
	TrustResult *model.TrustResult `json:"trustResult"`
}

// Ingestor is the ingest -> score -> persist -> broadcast pipeline.
// Per-sensor serialization is a keyed mutex (internal/keyedlock),
// generalized directly from a ledger consumer's ZoneStore.Append
// locking discipline.
type Ingestor struct {
	cfg     config.Config
	store   *store.Store
	tickets *tickets.Manager
	hub     *broadcast.Hub
	locks   *keyedlock.Set
	summary Summariser
	log     *slog.Logger
}

// New wires an Ingestor. locks must be the same Set the Ticket Manager
// uses, so their critical sections compose atomically per sensor.
// summary may be nil to disable the best-effort summariser.
func New(cfg config.Config, st *store.Store, tm *tickets.Manager, hub *broadcast.Hub, locks *keyedlock.Set, summary Summariser, log *slog.Logger) *Ingestor {
	return &Ingestor{cfg: cfg, store: st, tickets: tm, hub: hub, locks: locks, summary: summary, log: log}
}

// Ingest resolves externalID, persists the reading, scores it and, for
// an Anomalous verdict without FieldEvent among its root causes, hands
// off to the Ticket Manager.
func (in *Ingestor) Ingest(ctx context.Context, externalID string, payload ReadingInput) (Result, error) {
	sensorRef, err := in.store.ResolveSensorRef(externalID)
	if err != nil {
		metrics.IncReadingRejected("unknown_sensor")
		return Result{}, err
	}

	unlock := in.locks.Lock(sensorRef)
	defer unlock()

	reading, err := payload.toReading()
	if err != nil {
		metrics.IncReadingRejected("invalid_reading")
		return Result{}, err
	}

	readingRef, err := in.store.AppendReading(sensorRef, reading)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", model.ErrStoreError, err)
	}
	reading.ReadingRef = readingRef
	in.publish(broadcast.ReadingNew, sensorRef, reading)

	if ctx.Err() != nil {
		return Result{ReadingRef: readingRef}, ctx.Err()
	}

	sensor, err := in.store.GetSensor(sensorRef)
	if err != nil {
		return Result{ReadingRef: readingRef}, fmt.Errorf("%w: %v", model.ErrStoreError, err)
	}

	window, err := in.store.RecentReadings(sensorRef, in.cfg.Windows.DriftWindow+1)
	if err != nil {
		return Result{ReadingRef: readingRef}, fmt.Errorf("%w: %v", model.ErrStoreError, err)
	}
	var history []model.Reading
	if len(window) > 1 {
		history = window[1:]
	}
	if len(history) < 5 {
		return Result{ReadingRef: readingRef}, nil
	}

	input := scorer.Input{
		Sensor:       sensor,
		Reading:      reading,
		History:      history,
		Peers:        in.loadPeers(sensor),
		PriorResults: mustRecentTrustResults(in.store, sensorRef, in.cfg.Windows.TrendWindow),
	}

	scoreStart := time.Now()
	result, ok := scorer.Score(in.cfg, input)
	metrics.ObserveScoringDuration(time.Since(scoreStart))
	if !ok {
		return Result{ReadingRef: readingRef}, nil
	}
	result.SensorRef = sensorRef
	result.ReadingRef = readingRef
	metrics.IncReadingIngested(string(result.Status))

	if ctx.Err() != nil {
		return Result{ReadingRef: readingRef}, ctx.Err()
	}

	if err := in.store.SaveTrustResult(sensorRef, *result); err != nil {
		return Result{ReadingRef: readingRef}, fmt.Errorf("%w: %v", model.ErrStoreError, err)
	}
	in.publish(broadcast.TrustUpdated, sensorRef, *result)
	in.publish(broadcast.DashboardTick, "", dashboardTick{SensorRef: sensorRef, Status: result.Status})

	if result.Status == model.StatusAnomalous && !result.HasCause(model.CauseFieldEvent) {
		if _, err := in.tickets.OnAnomalous(sensorRef, diagnosticText(*result), result.Severity); err != nil {
			if in.log != nil {
				in.log.Error("ticket_handoff_failed", slog.String("sensorRef", sensorRef), slog.Any("err", err))
			}
		}
	}

	if summaryText := in.summarise(ctx, *result); summaryText != "" {
		result.Summary = &summaryText
		if err := in.store.SaveTrustResult(sensorRef, *result); err != nil && in.log != nil {
			in.log.Warn("summary_persist_failed", slog.String("sensorRef", sensorRef), slog.Any("err", err))
		}
	}

	return Result{ReadingRef: readingRef, TrustResult: result}, nil
}

// IngestBatch applies Ingest sequentially per item; one item's failure
// does not abort the others.
func (in *Ingestor) IngestBatch(ctx context.Context, items []BatchItem) []BatchOutcome {
	out := make([]BatchOutcome, len(items))
	for i, item := range items {
		result, err := in.Ingest(ctx, item.ExternalID, item.Reading)
		out[i] = BatchOutcome{ExternalID: item.ExternalID, Result: result, Err: err}
	}
	return out
}

// BatchItem is one entry of an IngestBatch call.
type BatchItem struct {
	ExternalID string
	Reading    ReadingInput
}

// BatchOutcome is the per-item result of an IngestBatch call.
type BatchOutcome struct {
	ExternalID string
	Result     Result
	Err        error
}

type dashboardTick struct {
	SensorRef string
	Status    model.Status
}

func (in *Ingestor) loadPeers(sensor model.Sensor) []scorer.PeerData {
	latest := in.store.LatestReadingPerSensor(sensor.Zone, sensor.SensorRef)
	histories := in.store.RecentReadingsBySensor(sensor.Zone, sensor.SensorRef, in.cfg.Windows.HistoryWindow)
	latestTrust := in.store.LatestTrustPerSensor()

	peers := make([]scorer.PeerData, 0, len(latest))
	for peerRef, reading := range latest {
		peer := scorer.PeerData{
			SensorRef: peerRef,
			Latest:    reading,
			History:   histories[peerRef],
		}
		if tr, ok := latestTrust[peerRef]; ok {
			score := tr.Score
			peer.LatestTrustScore = &score
		}
		peers = append(peers, peer)
	}
	return peers
}

func (in *Ingestor) publish(topic broadcast.Topic, sensorRef string, payload any) {
	if in.hub == nil {
		return
	}
	in.hub.Publish(broadcast.Event{Type: topic, SensorRef: sensorRef, Payload: payload})
}

// summarise calls the best-effort summariser for an Anomalous verdict.
// Failures are logged and swallowed; it never returns an error, since
// it is a non-primary-record side effect of ingestion.
func (in *Ingestor) summarise(ctx context.Context, result model.TrustResult) string {
	if in.summary == nil || result.Status != model.StatusAnomalous {
		return ""
	}
	text, err := in.summary.Summarise(ctx, result)
	if err != nil {
		if in.log != nil && !errors.Is(err, context.Canceled) {
			in.log.Warn("summary_failed", slog.String("sensorRef", result.SensorRef), slog.Any("err", err))
		}
		return ""
	}
	return text
}

func diagnosticText(result model.TrustResult) string {
	causes := make([]string, 0, len(result.RootCauses))
	for _, c := range result.RootCauses {
		causes = append(causes, string(c))
	}
	base := fmt.Sprintf("trust score %.4f (%s): %s", result.Score, result.Label, strings.Join(causes, ", "))
	if result.Summary != nil {
		return base + " - " + *result.Summary
	}
	return base
}

func mustRecentTrustResults(st *store.Store, sensorRef string, n int) []model.TrustResult {
	results, err := st.RecentTrustResults(sensorRef, n)
	if err != nil {
		return nil
	}
	return results
}
