package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/planora/planora/internal/auth"
	"github.com/planora/planora/internal/config"
	"github.com/planora/planora/internal/invite"
	"github.com/planora/planora/internal/kv"
	"github.com/planora/planora/internal/middleware"
	"github.com/planora/planora/internal/notify"
	"github.com/planora/planora/internal/role"
	"github.com/planora/planora/internal/service"
	"github.com/planora/planora/internal/storage/sqlite"
	"github.com/planora/planora/pkg/logging"
)

func main() {
	logging.Setup()
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage initialized", "database", cfg.DBPath)

	var slots kv.Store = kv.NewMemory()
	if cfg.RedisAddr != "" {
		slots = kv.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		logger.Info("pending invites backed by redis", "addr", cfg.RedisAddr)
	}

	broker := notify.NewBroker()
	pending := invite.NewPendingStore(slots, broker)
	authority := role.NewAuthority(store, nil)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	authService := service.NewAuthService(authenticator, jwtManager, store, pending, logger)
	roomService := service.NewRoomService(store, authority, pending, broker, logger)
	eventService := service.NewEventService(store, authority, broker, logger)
	wsHandler := notify.NewWSHandler(broker, service.NewTopicResolver(store, jwtManager), logger)

	r := chi.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.ClientID)

	// The websocket upgrade must not pass through the status-capturing
	// logging wrapper, so it mounts outside that chain.
	r.Handle("/ws", wsHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Logging)
		r.Use(middleware.Metrics)

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(jwtManager))
			authService.Routes(r)
			roomService.PendingRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtManager))
			r.Get("/auth/me", authService.Me)
			roomService.Routes(r)
			eventService.Routes(r)
		})
	})

	// h2c lets clients speak HTTP/2 without TLS behind a terminating proxy.
	handler := h2c.NewHandler(r, &http2.Server{})

	logger.Info("server starting", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
