package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"session-control-plane/internal/auth"
	"session-control-plane/internal/cache"
	"session-control-plane/internal/config"
	"session-control-plane/internal/db"
	"session-control-plane/internal/security"
	"session-control-plane/internal/server"
	"session-control-plane/internal/server/handler"
	"session-control-plane/internal/server/middleware"
	sessionrepo "session-control-plane/internal/session/repository"
	"session-control-plane/internal/telemetry"
	telemetryotel "session-control-plane/internal/telemetry/otel"
	userrepo "session-control-plane/internal/user/repository"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	database, err := db.Open(cfg.DatabaseURL, cfg.DatabaseMaxConnections)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	var cacheStore cache.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		cacheStore = cache.NewRedis(client, "authcache", cfg.CacheEntryTTL())
		log.Printf("cache: redis at %s", cfg.RedisAddr)
	} else {
		cacheStore = cache.NewMemory(cfg.CacheEntryTTL(), cfg.CacheMaxEntries)
		log.Printf("cache: in-process, max %d entries", cfg.CacheMaxEntries)
	}

	providers, err := telemetryotel.NewProviders(context.Background(), cfg.OTLPEndpoint, "session-control-plane", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	events := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	sessions := sessionrepo.NewPostgresRepository(database, cfg.TouchInterval())
	users := userrepo.NewPostgresRepository(database)
	lookups := auth.NewLookups(sessions, users, cacheStore, cfg.StoreCallTimeout())
	svc := auth.NewAuthService(sessions, lookups, tokens, events)

	gate := middleware.NewGate(tokens, lookups, sessions, events, cfg.MaxInactivity(), cfg.StoreCallTimeout())
	authH := handler.NewAuthHandler(svc)
	srv := server.New(authH, gate)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let in-flight async security emits finish before the exporter goes away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(context.Background()); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
