package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/medtrack/internal/api"
	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/config"
	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/repository"
	"github.com/dom/medtrack/internal/repository/memory"
	"github.com/dom/medtrack/internal/repository/postgres"
	"github.com/dom/medtrack/internal/service"
	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
)

func main() {
	store := flag.String("store", "postgres", "Storage backend: postgres or memory")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.IsDevelopment() {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	ctx := context.Background()

	var repos *repository.Repositories
	switch *store {
	case "postgres":
		db, err := postgres.NewConnection(cfg.DatabaseURL, logger.Warn)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to database")
		}
		repos = postgres.NewRepositories(db)
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		repos = memory.NewRepositories(memory.NewStore())
	default:
		log.Fatal().Str("store", *store).Msg("unknown store")
	}

	var actorCache cache.ActorCache = cache.NewNoop()
	if redisClient := cache.NewRedisClient(ctx, cfg.RedisURL, log); redisClient != nil {
		defer redisClient.Close()
		actorCache = cache.NewRedisActorCache(redisClient, cfg.ActorCacheTTL, "medtrack", log)
		log.Info().Msg("redis actor cache enabled")
	} else if *store == "memory" {
		actorCache = cache.NewMemory(cfg.ActorCacheTTL)
	}

	resolver := identity.NewResolver(repos.User, actorCache)
	services := service.NewServices(repos, cfg, actorCache, log)

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		created, err := services.Auth.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap admin")
		}
		if created {
			log.Info().Str("email", cfg.BootstrapAdminEmail).Msg("bootstrap admin created")
		}
	}

	router, err := api.NewRouter(services, resolver, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", *store).Str("timezone", cfg.Location.String()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
