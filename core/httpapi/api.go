package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/echobridge/core/channel"
	"github.com/dmitrymomot/echobridge/core/presence"
	"github.com/dmitrymomot/echobridge/core/rooms"
)

// Config holds the introspection API settings.
type Config struct {
	// AllowCORS adds permissive CORS headers to every response.
	AllowCORS    bool   `env:"API_ALLOW_CORS" envDefault:"false"`
	AllowOrigin  string `env:"API_ALLOW_ORIGIN" envDefault:"*"`
	AllowMethods string `env:"API_ALLOW_METHODS" envDefault:"GET, POST"`
	AllowHeaders string `env:"API_ALLOW_HEADERS" envDefault:"Origin, Content-Type, X-Auth-Token"`
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger, which is otherwise discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// API reads live state from the connection and presence registries. It never
// mutates anything.
type API struct {
	conns   *rooms.Registry
	members *presence.Registry
	cfg     Config
	started time.Time
	logger  *slog.Logger
}

func New(conns *rooms.Registry, members *presence.Registry, cfg Config, opts ...Option) *API {
	a := &API{
		conns:   conns,
		members: members,
		cfg:     cfg,
		started: time.Now(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes mounts the introspection endpoints onto the router. The group keeps
// the CORS middleware away from routes mounted elsewhere on the same router.
func (a *API) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if a.cfg.AllowCORS {
			r.Use(a.cors)
		}
		r.Get("/", a.getRoot)
		r.Get("/apps/{appId}/status", a.getStatus)
		r.Get("/apps/{appId}/channels", a.getChannels)
		r.Get("/apps/{appId}/channels/{channelName}", a.getChannel)
		r.Get("/apps/{appId}/channels/{channelName}/users", a.getChannelUsers)
	})
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.cfg.AllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", a.cfg.AllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", a.cfg.AllowHeaders)
		next.ServeHTTP(w, r)
	})
}

func (a *API) getRoot(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "OK",
	})
}

func (a *API) getStatus(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"subscription_count": a.conns.Count(),
		"uptime":             time.Since(a.started).Seconds(),
	})
}

type channelSummary struct {
	SubscriptionCount int  `json:"subscription_count"`
	Occupied          bool `json:"occupied"`
}

func (a *API) getChannels(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("filter_by_prefix")

	channels := make(map[string]channelSummary)
	for name, size := range a.conns.RoomSizes() {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		channels[name] = channelSummary{SubscriptionCount: size, Occupied: true}
	}

	a.writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (a *API) getChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channelName")
	size := len(a.conns.Members(name))

	result := map[string]any{
		"subscription_count": size,
		"occupied":           size > 0,
	}

	if channel.KindOf(name) == channel.Presence {
		users, err := a.members.Users(r.Context(), name)
		if err != nil {
			a.logger.ErrorContext(r.Context(), "presence lookup failed",
				slog.String("channel", name), slog.Any("error", err))
			a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not load channel members"})
			return
		}
		result["user_count"] = len(users)
	}

	a.writeJSON(w, http.StatusOK, result)
}

type channelUser struct {
	ID       string          `json:"id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
}

func (a *API) getChannelUsers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channelName")
	if channel.KindOf(name) != channel.Presence {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "User list is only possible for Presence Channels"})
		return
	}

	members, err := a.members.Users(r.Context(), name)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "presence lookup failed",
			slog.String("channel", name), slog.Any("error", err))
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not load channel members"})
		return
	}

	users := make([]channelUser, 0, len(members))
	for _, m := range members {
		users = append(users, channelUser{ID: m.UserID, UserInfo: m.UserInfo})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("write response", slog.Any("error", err))
	}
}
