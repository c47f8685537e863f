// cmd/api/main.go
// Main entry point for the event-buddy API
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
	"github.com/imadgeboyega/kiekky-events/internal/buddies"
	"github.com/imadgeboyega/kiekky-events/internal/common/database"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
	"github.com/imadgeboyega/kiekky-events/internal/config"
	"github.com/imadgeboyega/kiekky-events/internal/events"
	"github.com/imadgeboyega/kiekky-events/internal/matching"
	"github.com/imadgeboyega/kiekky-events/internal/messaging"
	"github.com/imadgeboyega/kiekky-events/internal/profile"
	"github.com/imadgeboyega/kiekky-events/internal/ratelimit"
)

var startTime = time.Now()

// stores bundles the repositories for the selected backend
type stores struct {
	profiles profile.Repository
	events   events.Repository
	buddies  buddies.Repository
	close    func()
}

func main() {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load and validate configuration
	cfg := config.Load()

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Debug("No .env file found, using environment variables", "error", envErr)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed", "error", err)
	}
	log.Info("Configuration loaded", "environment", cfg.Environment, "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Storage
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", "error", err)
	}
	defer st.close()

	// 4. Redis (optional): similar-events cache and request limiter
	var (
		eventCache events.Cache
		limiter    buddies.RateLimiter
	)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, continuing without cache and rate limiting", "error", err)
		} else {
			defer redisClient.Close()
			eventCache = events.NewRedisCache(redisClient, cfg.SimilarEventsCacheTTL)
			limiter = newRequestLimiter(redisClient, cfg, log)
			log.Info("Connected to Redis")
		}
	} else {
		log.Info("Redis URL not configured, skipping cache and rate limiting")
	}

	// 5. Notifications: websocket hub and NATS. With NATS up, events are
	// published there and every instance relays them into its own hub.
	var (
		hub       *buddies.Hub
		notifiers buddies.MultiNotifier
		relayed   bool
	)
	if cfg.EnableWebsocket {
		hub = buddies.NewHub(log)
		go hub.Run(ctx)
	}
	if cfg.EnableNATS {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsClient, err := messaging.NewNATSClient(natsCfg, log)
		if err != nil {
			log.Warn("NATS unavailable, match events will not be published", "error", err)
		} else {
			defer natsClient.Close()
			notifiers = append(notifiers, buddies.NewNATSNotifier(natsClient))
			if hub != nil {
				if err := natsClient.Subscribe(messaging.SubjectMatchEvents, buddies.Relay(hub, log)); err != nil {
					log.Warn("Failed to subscribe to match events, delivering locally", "error", err)
				} else {
					relayed = true
				}
			}
		}
	}
	if hub != nil && !relayed {
		notifiers = append(notifiers, hub)
	}

	// 6. Scoring
	ranker := matching.NewRanker(
		matching.WithSimilarityConfig(matching.SimilarityConfig{
			Weights:      matching.DefaultSimilarityWeights,
			CutoffKm:     cfg.GeoCutoffKm,
			CutoffWindow: cfg.TimeCutoff(),
		}),
		matching.WithScoreObserver(observeScore),
	)

	// 7. Services and handlers
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret, log)

	profileService := profile.NewService(st.profiles)
	profileHandler := profile.NewHandler(profileService, log)

	eventsCfg := events.DefaultConfig()
	eventsCfg.Window = cfg.TimeCutoff()
	eventsCfg.RadiusKm = cfg.GeoCutoffKm
	eventsService := events.NewService(st.events, ranker, eventCache, eventsCfg, log)
	eventsHandler := events.NewHandler(eventsService, log)

	manager := buddies.NewManager(st.buddies, st.events, notifiers, log)
	safety := buddies.NewSafetyGuard(st.profiles, limiter, log)
	buddiesCfg := buddies.Config{
		DefaultLimit: cfg.DefaultCandidateLimit,
		MaxLimit:     cfg.MaxCandidateLimit,
	}
	buddiesService := buddies.NewService(st.buddies, manager, st.profiles, st.events, ranker, safety, buddiesCfg, log)
	buddiesHandler := buddies.NewHandler(buddiesService, log)

	// 8. Background jobs
	collector := buddies.NewStatsCollector(st.buddies, log)
	buddies.NewScheduler(manager, collector, cfg.ExpireCheckInterval, cfg.StatsInterval, log).Start(ctx)

	// 9. Routes
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	profile.RegisterRoutes(router, profileHandler, authMiddleware)
	events.RegisterRoutes(router, eventsHandler, authMiddleware)
	buddies.RegisterRoutes(router, buddiesHandler, hub, authMiddleware)

	// 10. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return
	}
	log.Info("Server exited gracefully")
}

// openStores builds the repositories for cfg.StoreBackend
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("Using in-memory store; data is lost on restart")
		eventRepo := events.NewMemoryRepository()
		return &stores{
			profiles: profile.NewMemoryRepository(),
			events:   eventRepo,
			buddies:  buddies.NewMemoryRepository(eventStart(eventRepo)),
			close:    func() {},
		}, nil
	}

	db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	log.Info("Connected to PostgreSQL")

	version, err := database.RunMigrations(db.DB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Database migrations completed", "version", version)

	return postgresStores(db), nil
}

func postgresStores(db *sqlx.DB) *stores {
	return &stores{
		profiles: profile.NewPostgresRepository(db),
		events:   events.NewPostgresRepository(db),
		buddies:  buddies.NewPostgresRepository(db),
		close:    func() { db.Close() },
	}
}

// eventStart resolves start times for in-memory expiry
func eventStart(repo events.Repository) buddies.EventStartFunc {
	return func(ctx context.Context, eventID uuid.UUID) (time.Time, error) {
		event, err := repo.GetEvent(ctx, eventID)
		if err != nil {
			return time.Time{}, err
		}
		return event.StartsAt, nil
	}
}

func newRequestLimiter(client *redis.Client, cfg *config.Config, log *logger.Logger) buddies.RateLimiter {
	rule := ratelimit.BuddyRequestRule(cfg.MatchRequestLimit, cfg.MatchRequestWindow)
	return ratelimit.NewLimiter(client, log).For(rule)
}

func observeScore(kind string, score float64) {
	switch kind {
	case "similarity":
		events.RecordSimilarityScore(score)
	case "compatibility":
		buddies.RecordCompatibilityScore(score)
	}
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.SuccessResponse(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}, http.StatusOK)
}
