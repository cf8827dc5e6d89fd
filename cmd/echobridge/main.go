package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/echobridge/core/authgate"
	"github.com/dmitrymomot/echobridge/core/channel"
	"github.com/dmitrymomot/echobridge/core/dispatch"
	"github.com/dmitrymomot/echobridge/core/health"
	"github.com/dmitrymomot/echobridge/core/httpapi"
	"github.com/dmitrymomot/echobridge/core/ingest"
	"github.com/dmitrymomot/echobridge/core/kvstore"
	"github.com/dmitrymomot/echobridge/core/presence"
	"github.com/dmitrymomot/echobridge/core/push"
	"github.com/dmitrymomot/echobridge/core/rooms"
	"github.com/dmitrymomot/echobridge/core/socket"
	"github.com/dmitrymomot/echobridge/integration/database/mongo"
	"github.com/dmitrymomot/echobridge/integration/database/pg"
	"github.com/dmitrymomot/echobridge/integration/database/redis"
	"github.com/dmitrymomot/echobridge/pkg/config"
	"github.com/dmitrymomot/echobridge/pkg/httpserver"
)

type appConfig struct {
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"redis"` // redis | postgres | mongo | memory
	SubscribeRedis bool   `env:"SUBSCRIBE_REDIS" envDefault:"true"`
	SubscribeHTTP  bool   `env:"SUBSCRIBE_HTTP" envDefault:"true"`
	SocketPath     string `env:"SOCKET_PATH" envDefault:"/ws"`
}

func main() {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	logger := newLogger(appCfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appCfg, logger); err != nil {
		logger.Error("bridge stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("bridge stopped")
}

func run(ctx context.Context, appCfg appConfig, logger *slog.Logger) error {
	var (
		serverCfg httpserver.Config
		socketCfg socket.Config
		authCfg   authgate.Config
		apiCfg    httpapi.Config
		pushCfg   push.Config
		redisCfg  redis.Config
	)
	config.MustLoad(&serverCfg)
	config.MustLoad(&socketCfg)
	config.MustLoad(&authCfg)
	config.MustLoad(&apiCfg)
	config.MustLoad(&pushCfg)
	config.MustLoad(&redisCfg)

	// A single redis client backs both the kv store and the pub/sub
	// subscriber when either needs one.
	var redisClient *goredis.Client
	if appCfg.StorageDriver == "redis" || appCfg.SubscribeRedis {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		redisClient = client
	}

	store, storeCheck, err := openStore(ctx, appCfg.StorageDriver, redisClient, logger)
	if err != nil {
		return err
	}
	logger.Info("storage ready", slog.String("driver", appCfg.StorageDriver))

	conns := rooms.NewRegistry(rooms.WithLogger(logger))
	members := presence.NewRegistry(store, conns, presence.WithLogger(logger))

	dispatchOpts := []dispatch.Option{dispatch.WithLogger(logger)}
	if pushCfg.URL != "" {
		sink, err := push.NewHTTPSink(pushCfg, push.WithLogger(logger))
		if err != nil {
			return err
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithPushSink(pushCfg.Channel, sink))
		logger.Info("push sink enabled", slog.String("channel", pushCfg.Channel))
	}
	dispatcher := dispatch.New(conns, dispatchOpts...)

	gate := authgate.New(authCfg, authgate.WithLogger(logger))
	manager := channel.New(conns, members, gate, dispatcher, channel.WithLogger(logger))
	ws := socket.NewHandler(manager, conns, socketCfg, socket.WithLogger(logger))
	api := httpapi.New(conns, members, apiCfg, httpapi.WithLogger(logger))

	deliver := func(channelName string, msg dispatch.Message) {
		dispatcher.Broadcast(context.Background(), channelName, msg)
	}

	var subscribers []ingest.Subscriber
	if appCfg.SubscribeRedis {
		subscribers = append(subscribers, ingest.NewRedisSubscriber(redisClient, redisCfg.KeyPrefix, ingest.WithRedisLogger(logger)))
	}
	httpSub := ingest.NewHTTPSubscriber(ingest.WithHTTPLogger(logger))
	if appCfg.SubscribeHTTP {
		subscribers = append(subscribers, httpSub)
	}
	for _, sub := range subscribers {
		if err := sub.Subscribe(ctx, deliver); err != nil {
			return err
		}
	}
	defer func() {
		for _, sub := range subscribers {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, ingest.ErrNotSubscribed) {
				logger.Warn("subscriber shutdown", slog.Any("error", err))
			}
		}
	}()
	logger.Info("listening for events", slog.Int("subscribers", len(subscribers)))

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get(appCfg.SocketPath, ws.ServeHTTP)
	router.Get("/health/live", health.Liveness)
	router.Get("/health/ready", health.Readiness(logger, storeCheck))
	if appCfg.SubscribeHTTP {
		router.Post("/apps/{appId}/events", httpSub.ServeHTTP)
	}
	api.Routes(router)

	srv := httpserver.New(serverCfg, httpserver.WithLogger(logger))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, router) })
	return g.Wait()
}

func openStore(ctx context.Context, driver string, redisClient *goredis.Client, logger *slog.Logger) (kvstore.Store, func(context.Context) error, error) {
	switch driver {
	case "redis":
		return kvstore.NewRedisStore(redisClient), redis.Healthcheck(redisClient), nil
	case "postgres":
		var cfg pg.Config
		config.MustLoad(&cfg)
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, pool, logger); err != nil {
			return nil, nil, err
		}
		return kvstore.NewPostgresStore(pool), pg.Healthcheck(pool), nil
	case "mongo":
		var cfg mongo.Config
		config.MustLoad(&cfg)
		db, err := mongo.ConnectDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewMongoStore(db), mongo.Healthcheck(db.Client()), nil
	case "memory":
		noop := func(context.Context) error { return nil }
		return kvstore.NewMemoryStore(), noop, nil
	default:
		return nil, nil, errors.New("unknown storage driver: " + driver)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
