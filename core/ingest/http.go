package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dmitrymomot/echobridge/core/dispatch"
)

// HTTPSubscriber accepts broadcast events over plain HTTP for application
// servers without a redis connection. Mount ServeHTTP as the POST handler of
// /apps/{appId}/events; delivery starts after Subscribe and stops after
// Unsubscribe, during which requests are answered with 503.
type HTTPSubscriber struct {
	logger *slog.Logger

	mu sync.RWMutex
	fn Handler
	wg sync.WaitGroup
}

// HTTPOption configures an HTTPSubscriber.
type HTTPOption func(*HTTPSubscriber)

// WithHTTPLogger sets the logger, which is otherwise discarded.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPSubscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewHTTPSubscriber(opts ...HTTPOption) *HTTPSubscriber {
	s := &HTTPSubscriber{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSubscriber) Subscribe(_ context.Context, fn Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fn != nil {
		return ErrAlreadySubscribed
	}
	s.fn = fn
	return nil
}

func (s *HTTPSubscriber) Unsubscribe() error {
	s.mu.Lock()
	if s.fn == nil {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	s.fn = nil
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// eventRequest is the POST body. Channel and Channels are alternatives;
// both may be present and are merged.
type eventRequest struct {
	Name     string          `json:"name"`
	Channel  string          `json:"channel,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	SocketID string          `json:"socket_id,omitempty"`
}

func (s *HTTPSubscriber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.fn
	if fn != nil {
		s.wg.Add(1)
		defer s.wg.Done()
	}
	s.mu.RUnlock()

	if fn == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Subscriber is not running"})
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	channels := req.Channels
	if req.Channel != "" {
		channels = append(channels, req.Channel)
	}
	if req.Name == "" || len(channels) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Event must include name and at least one channel"})
		return
	}

	msg := dispatch.Message{Event: req.Name, Data: req.Data, Socket: req.SocketID}
	for _, channel := range channels {
		fn(channel, msg)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
