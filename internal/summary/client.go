// v0
// internal/summary/client.go
package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/HashimCodeDev/STVE/internal/model"
	"github.com/HashimCodeDev/STVE/internal/resilience"
)

// promptRequest is the compact JSON body POSTed to the summariser
// endpoint.
type promptRequest struct {
	SensorRef  string             `json:"sensorRef"`
	Score      float64            `json:"score"`
	Status     model.Status       `json:"status"`
	Severity   model.Severity     `json:"severity"`
	RootCauses []model.RootCause  `json:"rootCauses"`
	Flags      []string           `json:"flags"`
}

type promptResponse struct {
	Summary string `json:"summary"`
}

// Client produces a natural-language explanation of a TrustResult by
// calling a configured LLM HTTP endpoint, using
// github.com/go-resty/resty/v2 the way a device controller calls out
// to a provisioning service, wrapped in
// a resilience.Breaker so a struggling endpoint cannot slow down
// ingest. Satisfies ingest.Summariser.
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
}

// New returns a Client posting to endpoint with the given per-request
// timeout. An empty endpoint is not special-cased: every Summarise call
// then fails with a request error. app.New builds a Client only when
// config.SummaryEnabled is true.
func New(endpoint string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout)
	return &Client{
		http:    http,
		breaker: resilience.New("summary-endpoint", resilience.Config{MaxFailures: 3, ResetTimeout: 30 * time.Second}, nil),
	}
}

// Summarise POSTs a compact description of result and returns the
// LLM's prose explanation. Never called on the critical scoring path —
// the Ingestor invokes it only after a TrustResult has already been
// persisted, and discards any error.
func (c *Client) Summarise(ctx context.Context, result model.TrustResult) (string, error) {
	var out promptResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(promptRequest{
				SensorRef:  result.SensorRef,
				Score:      result.Score,
				Status:     result.Status,
				Severity:   result.Severity,
				RootCauses: result.RootCauses,
				Flags:      result.Flags,
			}).
			SetResult(&out).
			Post("/summarise")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("summariser endpoint returned %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.Summary, nil
}
