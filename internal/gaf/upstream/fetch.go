package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// StatusError is a non-2xx answer from one backend endpoint. It unwraps to
// errRateLimited, errServerError or errUnexpected.
type StatusError struct {
	Path string
	Code int
	kind error
}

func newStatusError(path string, code int) *StatusError {
	kind := errUnexpected
	switch {
	case code == http.StatusTooManyRequests:
		kind = errRateLimited
	case code >= 500:
		kind = errServerError
	}
	return &StatusError{Path: path, Code: code, kind: kind}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s answered %d: %v", e.Path, e.Code, e.kind)
}

func (e *StatusError) Unwrap() error { return e.kind }

// Temporary reports whether a later attempt at the same path may succeed.
// A 4xx other than 429 means the path is wrong, which retrying cannot fix.
func (e *StatusError) Temporary() bool { return e.kind != errUnexpected }

// fetcher issues GETs against the backend through a shared circuit breaker.
// retries of zero means a single attempt per call; the refresh cycle is the
// outer retry loop.
type fetcher struct {
	client  *http.Client
	circuit *gobreaker.CircuitBreaker

	retries    int
	firstDelay time.Duration
	maxDelay   time.Duration
}

// get fetches target, reporting failures against path. The caller closes the
// returned body.
func (f *fetcher) get(ctx context.Context, path, target string) (*http.Response, error) {
	if f.client == nil || f.circuit == nil {
		return nil, errNoHTTPClient
	}

	for attempt := 0; ; attempt++ {
		resp, err := f.once(ctx, path, target)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", errCircuitOpen, path, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var status *StatusError
		if errors.As(err, &status) && !status.Temporary() {
			return nil, err
		}
		if attempt >= f.retries {
			return nil, err
		}

		timer := time.NewTimer(f.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (f *fetcher) once(ctx context.Context, path, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	result, err := f.circuit.Execute(func() (interface{}, error) {
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, newStatusError(path, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// delay doubles from firstDelay on each attempt, capped at maxDelay.
func (f *fetcher) delay(attempt int) time.Duration {
	d := f.firstDelay << attempt
	if d <= 0 || (f.maxDelay > 0 && d > f.maxDelay) {
		return f.maxDelay
	}
	return d
}
