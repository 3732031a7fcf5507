package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/watchtrack/internal/events"
	"github.com/example/watchtrack/internal/handlers"
	"github.com/example/watchtrack/internal/platform/auth"
	"github.com/example/watchtrack/internal/platform/config"
	"github.com/example/watchtrack/internal/platform/db"
	"github.com/example/watchtrack/internal/platform/httpserver"
	"github.com/example/watchtrack/internal/platform/logging"
	"github.com/example/watchtrack/internal/platform/natsconn"
	"github.com/example/watchtrack/internal/platform/run"
	"github.com/example/watchtrack/internal/progress"
	"github.com/example/watchtrack/internal/tokens"
	"github.com/example/watchtrack/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	var (
		pool         *pgxpool.Pool
		progressRepo progress.Repository
		userStore    users.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err = db.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Error("db open", zap.Error(err))
			run.Exit(1)
		}
		defer pool.Close()
		progressRepo = progress.NewPostgresRepository(pool)
		userStore = users.PostgresStore{DB: pool}
		log.Info("using postgres storage")
	} else {
		progressRepo = progress.NewMemoryRepository()
		userStore = users.NewMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory storage (development only)")
	}

	var cache *progress.Cache
	if cfg.RedisURL != "" {
		cache, err = progress.NewCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Error("redis connect", zap.Error(err))
			run.Exit(1)
		}
		log.Info("progress cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	}

	publisher := events.New(nil, log)
	if cfg.NATSURL != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL})
		if err != nil {
			log.Warn("nats connect failed, events disabled", zap.Error(err))
		} else {
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				log.Warn("jetstream init failed, events disabled", zap.Error(err))
			} else {
				publisher = events.New(js, log)
				log.Info("event publisher enabled")
			}
		}
	}

	svc := progress.NewService(progressRepo, cache, log)
	tokenSvc := tokens.Service{Secret: cfg.JWTSecret, AccessTokenTTL: cfg.AccessTokenTTL}
	verifier := auth.JWTVerifier{Secret: cfg.JWTSecret}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		if pool != nil {
			return pool.Ping(context.Background())
		}
		return nil
	}})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", handlers.Signup(userStore, publisher))
		r.Post("/login", handlers.Login(userStore, tokenSvc, publisher))
	})
	r.Route("/api/video", func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/progress", handlers.SubmitProgress(svc, publisher))
		r.Get("/progress/{video_id}", handlers.GetProgress(svc))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
