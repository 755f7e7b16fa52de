// Package scraper contains the source adapters that pull candidate venues
// from external providers and normalize them into the common Candidate
// schema. Adapters never fail on empty results or single malformed
// upstream records; they return an error only for transport-level
// failures, which the pipeline treats as a zero contribution from that
// source.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/resilience"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Query describes the location a source should scrape.
type Query struct {
	Center   *Coordinates // optional; some sources work from the city name alone
	RadiusKm float64
	City     string
}

// CityOrDefault returns the queried city name, or the unspecified-city
// literal when the caller gave none.
func (q Query) CityOrDefault() string {
	if q.City != "" {
		return q.City
	}
	return model.UnspecifiedCity
}

// Source is one upstream data provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]model.Candidate, error)
}

const defaultRequestTimeout = 15 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultRequestTimeout}
}

// doJSON issues a request built by newReq with retry on transient
// failures and decodes the 2xx response body into out. The request is
// rebuilt per attempt so bodies are safe to resend. Non-2xx statuses
// become errors, transient ones marked retryable.
func doJSON(ctx context.Context, client *http.Client, source string, newReq func(ctx context.Context) (*http.Request, error), out any) error {
	body, err := resilience.DoVal(ctx, retryConfig(source), func(ctx context.Context) ([]byte, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: build request", source)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: request", source)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := eris.Errorf("%s: unexpected status %s", source, resp.Status)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: read body", source)
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "%s: decode response", source)
	}
	return nil
}

func retryConfig(source string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(source)
	return cfg
}

// floatString tolerates upstream fields that arrive as either JSON
// numbers or numeric strings.
type floatString float64

func (f *floatString) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = floatString(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Errorf("not a number: %s", string(data))
	}
	if _, err := fmt.Sscanf(s, "%g", &n); err != nil {
		return eris.Wrapf(err, "parse %q", s)
	}
	*f = floatString(n)
	return nil
}
