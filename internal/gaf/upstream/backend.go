package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/gaf-clearance/internal/gaf"
)

// Backend implements gaf.Source against the bom-charts style backend API.
type Backend struct {
	baseURL *url.URL
	fetch   *fetcher
	logger  *slog.Logger
}

// NewBackend creates a Backend rooted at baseURL. maxRetries of zero disables
// retries, leaving the next refresh cycle to try again.
func NewBackend(client *http.Client, baseURL *url.URL, maxRetries int, logger *slog.Logger) *Backend {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Twenty requests fire per cycle; trip only when the backend is clearly down.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 20
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Backend{
		baseURL: baseURL,
		fetch: &fetcher{
			client:     client,
			circuit:    cb,
			retries:    maxRetries,
			firstDelay: 500 * time.Millisecond,
			maxDelay:   5 * time.Second,
		},
		logger: logger,
	}
}

// FetchForecast retrieves GET /api/gafarea/{region}/{period}.json.
func (b *Backend) FetchForecast(ctx context.Context, region gaf.Region, period gaf.Period) (gaf.Forecast, error) {
	var f gaf.Forecast
	path := fmt.Sprintf("/api/gafarea/%s/%s.json", region, period)
	if err := b.getJSON(ctx, path, &f); err != nil {
		return gaf.Forecast{}, fmt.Errorf("fetch forecast %s/%s: %w", region, period, err)
	}
	if f.GAFAreaID == "" {
		f.GAFAreaID = region
	}
	return f, nil
}

// FetchGrid retrieves GET /json/lsalt-{region}.json.
func (b *Backend) FetchGrid(ctx context.Context, region gaf.Region) ([]gaf.GridCell, error) {
	var cells []gaf.GridCell
	path := fmt.Sprintf("/json/lsalt-%s.json", region)
	if err := b.getJSON(ctx, path, &cells); err != nil {
		return nil, fmt.Errorf("fetch lsalt grid %s: %w", region, err)
	}
	return cells, nil
}

func (b *Backend) url(path string) string {
	u := *b.baseURL
	u.Path = path
	u.RawQuery = ""
	return u.String()
}

func (b *Backend) getJSON(ctx context.Context, path string, dst any) error {
	start := time.Now()
	resp, err := b.fetch.get(ctx, path, b.url(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	b.logger.Debug("backend fetch", "path", path, "duration", time.Since(start))
	return nil
}
