package authgate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the backend authorization settings.
type Config struct {
	// AuthHosts lists the allowed authorization origins. The first entry is
	// the fallback when a connection carries no usable Referer.
	AuthHosts    []string      `env:"AUTH_HOSTS" envDefault:"http://localhost"`
	AuthEndpoint string        `env:"AUTH_ENDPOINT" envDefault:"/broadcasting/auth"`
	Timeout      time.Duration `env:"AUTH_TIMEOUT" envDefault:"10s"`

	// Optional full URLs notified when a client connects or disconnects.
	ConnectEndpoint    string `env:"AUTH_CLIENT_CONNECT_ENDPOINT"`
	DisconnectEndpoint string `env:"AUTH_CLIENT_DISCONNECT_ENDPOINT"`
}

// Request describes one channel authorization attempt. Referer and Cookie
// are snapshots of the connection's upgrade request headers.
type Request struct {
	SocketID string
	Channel  string
	Referer  string
	Cookie   string
	// Headers are caller-supplied auth headers forwarded verbatim.
	Headers map[string]string
}

// Gateway authenticates a connection's right to join a private or presence
// channel by delegating to the backend application over HTTP.
type Gateway struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger configures structured logging for the gateway.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithHTTPClient replaces the default HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// New creates a Gateway for the given configuration.
func New(cfg Config, opts ...Option) *Gateway {
	if len(cfg.AuthHosts) == 0 {
		cfg.AuthHosts = []string{"http://localhost"}
	}
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = "/broadcasting/auth"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	g := &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate posts the form-encoded handshake to the backend authorizer.
// A 200 response resolves with the body (parsed as JSON when possible); any
// other outcome is an *AuthError scoped to this channel attempt.
func (g *Gateway) Authenticate(ctx context.Context, req Request) (Result, error) {
	target := g.authHost(req.Referer) + g.cfg.AuthEndpoint

	form := url.Values{}
	form.Set("socket_id", req.SocketID)
	form.Set("channel_name", req.Channel)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, &AuthError{Status: 0, Reason: "error sending authentication request"}
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Cookie") == "" && req.Cookie != "" {
		httpReq.Header.Set("Cookie", req.Cookie)
	}
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")

	g.logger.DebugContext(ctx, "sending auth request",
		slog.String("url", target),
		slog.String("socket_id", req.SocketID),
		slog.String("channel", req.Channel))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.DebugContext(ctx, "auth request transport failure",
			slog.String("socket_id", req.SocketID),
			slog.String("channel", req.Channel),
			slog.Any("error", err))
		return Result{}, &AuthError{Status: 0, Reason: "error sending authentication request"}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &AuthError{Status: 0, Reason: "error sending authentication request"}
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, &AuthError{
			Status: resp.StatusCode,
			Reason: "client can not be authenticated, got HTTP status " + resp.Status,
		}
	}

	return newResult(body), nil
}

// authHost selects the authorization origin for a connection. A configured
// host matching the referer's registrable-domain suffix or exact origin
// confirms the referer, whose own scheme://host is then used; otherwise the
// first configured host applies.
func (g *Gateway) authHost(referer string) string {
	fallback := g.cfg.AuthHosts[0]
	if referer == "" {
		return fallback
	}

	ref, err := url.Parse(referer)
	if err != nil || ref.Host == "" {
		return fallback
	}

	for _, host := range g.cfg.AuthHosts {
		if matchesReferer(ref, host) {
			return ref.Scheme + "://" + ref.Host
		}
	}
	return fallback
}

// matchesReferer reports whether the configured host confirms the referer:
// either the referer hostname's domain suffix (everything from the first
// dot) equals the host, or the exact scheme://host or bare host matches.
func matchesReferer(ref *url.URL, host string) bool {
	if hostname := ref.Hostname(); hostname != "" {
		if i := strings.Index(hostname, "."); i >= 0 && hostname[i:] == host {
			return true
		}
	}
	return ref.Scheme+"://"+ref.Host == host || ref.Host == host
}
