package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/farmtech/irrigation-advisor/internal/weather"
)

// HTTPClientConfig bundles the HTTP client and the outbound call limits shared
// by every provider. The client must carry a timeout.
type HTTPClientConfig struct {
	Client  *http.Client
	Limiter *rate.Limiter // optional
}

var (
	errNoHTTPClient = errors.New("http client not configured")
	validate        = validator.New()
)

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 256

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
}

// doRequest executes a single request through the rate limiter and the circuit
// breaker. There are no retries: the next scheduled cycle is the recovery path.
// Failures are returned as *weather.FetchError.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	provider, op string,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	fail := func(status int, err error) error {
		return &weather.FetchError{Provider: provider, Op: op, StatusCode: status, Err: err}
	}

	if cfg.Client == nil {
		return nil, fail(0, errNoHTTPClient)
	}
	if cfg.Limiter != nil {
		if err := cfg.Limiter.Wait(ctx); err != nil {
			return nil, fail(0, fmt.Errorf("rate limit wait canceled: %w", err))
		}
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, fail(0, err)
	}

	var status int
	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		status = resp.StatusCode
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", weather.ErrRateLimited, body)
		}
		return nil, fmt.Errorf("%w: %s", weather.ErrUnexpectedStatus, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fail(0, fmt.Errorf("%w: %v", weather.ErrCircuitOpen, err))
		}
		return nil, fail(status, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fail(0, fmt.Errorf("unexpected result type from circuit breaker"))
	}
	return resp, nil
}

// decodePayload decodes the JSON body into out and checks its validate tags.
// Missing or mistyped fields surface as weather.ErrMalformedPayload.
func decodePayload(resp *http.Response, provider, op string, out any) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &weather.FetchError{
			Provider:   provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %v", weather.ErrMalformedPayload, err),
		}
	}
	if err := validate.Struct(out); err != nil {
		return &weather.FetchError{
			Provider:   provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %v", weather.ErrMalformedPayload, err),
		}
	}
	return nil
}
