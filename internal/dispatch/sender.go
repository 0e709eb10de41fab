package dispatch

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/coachpo/beacon-spear-edge/internal/config"
	"github.com/coachpo/beacon-spear-edge/internal/provider"
)

// Sender is the outbound transport capability. It returns the response
// status; transport-level failures come back as errors. Timeouts belong to
// the transport, not to the dispatcher.
type Sender interface {
	Send(ctx context.Context, req *provider.Request) (int, error)
}

type HTTPSender struct {
	client *http.Client
}

func NewHTTPSender(timeout time.Duration) *HTTPSender {
	return &HTTPSender{client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSender) Send(ctx context.Context, req *provider.Request) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return 0, err
	}
	req.Headers.Each(func(k, v string) {
		httpReq.Header.Set(k, v)
	})

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// BreakerSender wraps a Sender with a circuit breaker. An open circuit
// surfaces as a transport error and folds into a Result like any other
// failure; it never aborts the ingest request.
type BreakerSender struct {
	inner Sender
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerSender(inner Sender, cfg config.BreakerConfig) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        "provider-dispatch",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.IntervalSec) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 3
	}
	failRatio := cfg.FailRatio
	if failRatio == 0 {
		failRatio = 0.5
	}
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		ratio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= minRequests && ratio >= failRatio
	}

	return &BreakerSender{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (s *BreakerSender) Send(ctx context.Context, req *provider.Request) (int, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Send(ctx, req)
	})
	if err != nil {
		return 0, err
	}
	return out.(int), nil
}
