package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"stayfinder/internal/backend"
	"stayfinder/internal/booking"
	"stayfinder/internal/config"
	"stayfinder/internal/listings"
	"stayfinder/internal/querycache"
	"stayfinder/internal/server"
	"stayfinder/internal/session"
	"stayfinder/internal/tokenstore"
	"stayfinder/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cacheTTL, err := config.ParseCacheTTL(cfg.CacheTTL)
	if err != nil {
		log.Fatalf("failed to parse cache TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var cacheStore querycache.Store
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		cacheStore = querycache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cacheTTL)
	default:
		cacheStore = querycache.NewMemoryStore()
	}
	cache := querycache.New(cacheStore)

	var tokens session.TokenStore
	if cfg.TokenFile != "" {
		tokens, err = tokenstore.NewFileStore(cfg.TokenFile)
		if err != nil {
			log.Fatalf("failed to init token store: %v", err)
		}
	} else {
		tokens = tokenstore.NewMemoryStore()
	}

	api := backend.NewClient(cfg.BackendBaseURL)
	sessions := session.New(api, cache, tokens)
	listingSvc := listings.New(api, cache, sessions)
	bookingSvc := booking.New(api, cache, sessions)

	httpServer, err := server.New(server.Config{
		Sessions:                  sessions,
		Listings:                  listingSvc,
		Bookings:                  bookingSvc,
		RedisAddr:                 cfg.RedisAddr,
		RedisPassword:             cfg.RedisPassword,
		LoginRateLimitPerMinute:   cfg.LoginRateLimitPerMinute,
		SignupRateLimitPerMinute:  cfg.SignupRateLimitPerMinute,
		BookingRateLimitPerMinute: cfg.BookingRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("gateway listening", "addr", addr, "backend", cfg.BackendBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
