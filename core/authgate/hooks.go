package authgate

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type clientHookPayload struct {
	SocketID string `json:"socket_id"`
}

// NotifyConnect posts the socket id to the configured connect endpoint, when
// one is set. Failures are logged only; the connection proceeds regardless.
func (g *Gateway) NotifyConnect(ctx context.Context, socketID string, headers map[string]string) {
	g.notify(ctx, g.cfg.ConnectEndpoint, socketID, headers)
}

// NotifyDisconnect posts the socket id to the configured disconnect
// endpoint, when one is set.
func (g *Gateway) NotifyDisconnect(ctx context.Context, socketID string, headers map[string]string) {
	g.notify(ctx, g.cfg.DisconnectEndpoint, socketID, headers)
}

func (g *Gateway) notify(ctx context.Context, endpoint, socketID string, headers map[string]string) {
	if endpoint == "" {
		return
	}

	body, _ := json.Marshal(clientHookPayload{SocketID: socketID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		g.logger.ErrorContext(ctx, "client hook request failed",
			slog.String("endpoint", endpoint), slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.ErrorContext(ctx, "client hook request failed",
			slog.String("endpoint", endpoint),
			slog.String("socket_id", socketID),
			slog.Any("error", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	g.logger.DebugContext(ctx, "client hook delivered",
		slog.String("endpoint", endpoint),
		slog.String("socket_id", socketID),
		slog.Int("status", resp.StatusCode))
}
