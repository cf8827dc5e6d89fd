package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/echobridge/core/dispatch"
)

// Config holds the push sink settings. An empty URL disables the sink and
// with it the reserved-channel diversion.
type Config struct {
	URL        string        `env:"PUSH_SINK_URL"`
	Channel    string        `env:"PUSH_CHANNEL" envDefault:"private-push"`
	Timeout    time.Duration `env:"PUSH_SINK_TIMEOUT" envDefault:"10s"`
	MaxRetries int           `env:"PUSH_SINK_MAX_RETRIES" envDefault:"2"`
}

// Option configures an HTTPSink.
type Option func(*HTTPSink)

// WithLogger sets the logger, which is otherwise discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(s *HTTPSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPSink) {
		if client != nil {
			s.client = client
		}
	}
}

// HTTPSink POSTs each message as JSON to a fixed URL, retrying transient
// failures with a linear backoff. It implements dispatch.Sink.
type HTTPSink struct {
	url        string
	maxRetries int
	client     *http.Client
	logger     *slog.Logger
}

func NewHTTPSink(cfg Config, opts ...Option) (*HTTPSink, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	s := &HTTPSink{
		url:        cfg.URL,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Deliver posts the message, retrying on transport errors and 5xx responses.
func (s *HTTPSink) Deliver(ctx context.Context, msg dispatch.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrDeliveryFailed, ctx.Err())
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}

		retryable, err := s.attempt(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
		s.logger.WarnContext(ctx, "push delivery retrying",
			slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
	return errors.Join(ErrDeliveryFailed, lastErr)
}

func (s *HTTPSink) attempt(ctx context.Context, payload []byte) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return true, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("unexpected status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
