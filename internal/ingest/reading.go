// v0
// internal/ingest/reading.go
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HashimCodeDev/STVE/internal/model"
)

// ReadingInput is the wire-agnostic payload IngestReading accepts. Each
// probe is `any` rather than *float64 so a JSON-decoded payload's
// numbers-as-strings or `json.Number` values can still be validated
// here rather than at the transport boundary — the same flexible
// decoding a ledger consumer applied to epoch/energy fields,
// generalized to four probes.
type ReadingInput struct {
	Moisture    any `json:"moisture"`
	Temperature any `json:"temperature"`
	EC          any `json:"ec"`
	PH          any `json:"ph"`
	AirTemp     any `json:"airTemp"`

	IsRaining        *bool     `json:"isRaining"`
	IrrigationActive *bool     `json:"irrigationActive"`
	Timestamp        time.Time `json:"timestamp"`
}

// toReading converts in into a model.Reading, returning
// model.ErrInvalidReading wrapping the offending field if any provided
// probe cannot be parsed as a number. Absent probes (nil) are simply
// skipped, matching the Scorer's "optional probe" contract.
func (in ReadingInput) toReading() (model.Reading, error) {
	r := model.Reading{
		IsRaining:        in.IsRaining,
		IrrigationActive: in.IrrigationActive,
		Timestamp:        in.Timestamp,
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	var err error
	if r.Moisture, err = parseProbeValue(in.Moisture); err != nil {
		return model.Reading{}, fmt.Errorf("%w: moisture: %v", model.ErrInvalidReading, err)
	}
	if r.Temperature, err = parseProbeValue(in.Temperature); err != nil {
		return model.Reading{}, fmt.Errorf("%w: temperature: %v", model.ErrInvalidReading, err)
	}
	if r.EC, err = parseProbeValue(in.EC); err != nil {
		return model.Reading{}, fmt.Errorf("%w: ec: %v", model.ErrInvalidReading, err)
	}
	if r.PH, err = parseProbeValue(in.PH); err != nil {
		return model.Reading{}, fmt.Errorf("%w: ph: %v", model.ErrInvalidReading, err)
	}
	if r.AirTemp, err = parseProbeValue(in.AirTemp); err != nil {
		return model.Reading{}, fmt.Errorf("%w: airTemp: %v", model.ErrInvalidReading, err)
	}
	return r, nil
}

// parseProbeValue accepts a float64, int, json.Number or numeric string
// and returns a *float64, or an error if raw is present but not
// numeric. A nil raw yields (nil, nil) — the probe is simply absent.
func parseProbeValue(raw any) (*float64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return &f, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric value %q", trimmed)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}
