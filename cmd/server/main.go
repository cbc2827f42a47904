package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"campushub/statesync/internal/broadcast"
	"campushub/statesync/internal/config"
	internalhttp "campushub/statesync/internal/http"
	"campushub/statesync/internal/ingest"
	"campushub/statesync/internal/localcache"
	"campushub/statesync/internal/remote"
	"campushub/statesync/internal/syncer"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var local *localcache.Cache
	if cfg.LocalCachePath != "" {
		cache, err := localcache.Open(cfg.LocalCachePath)
		if err != nil {
			// The mirror is best-effort; run without it rather than die.
			log.Printf("local cache unavailable, continuing without mirror: %v", err)
		} else {
			local = cache
			defer local.Close()
		}
	}

	var remoteStore remote.Store
	switch strings.ToLower(cfg.RemoteDriver) {
	case "bin":
		if cfg.RemoteStoreURL == "" {
			log.Printf("no remote store url configured, running in local-only mode")
		} else {
			remoteStore = remote.NewBinStore(cfg.RemoteStoreURL, cfg.RemoteToken, cfg.RemoteTimeout)
		}
	case "postgres":
		store, err := remote.NewPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("remote store connection failed: %v", err)
		}
		defer store.Close()
		remoteStore = store
	case "off":
		log.Printf("remote store disabled, running in local-only mode")
	default:
		log.Fatalf("unknown remote store driver %q", cfg.RemoteDriver)
	}

	bus := broadcast.NewBus()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The cross-process relay is best-effort only.
			log.Printf("redis ping failed, change relay disabled: %v", err)
		} else {
			bus.AttachRelay(ctx, redisClient, cfg.RedisChannel)
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Printf("redis close error: %v", err)
				}
			}()
		}
	}

	coordinator := syncer.New(remoteStore, local, bus, cfg.RemoteSizeLimit)
	coordinator.Load(ctx)
	syncer.StartPoller(ctx, cfg, coordinator)

	var extractor ingest.Extractor
	if cfg.ExtractorURL != "" {
		extractor = ingest.NewHTTPExtractor(cfg.ExtractorURL, cfg.ExtractorTimeout)
	}
	var stylizer ingest.Stylizer
	if cfg.StylizerURL != "" {
		stylizer = ingest.NewHTTPStylizer(cfg.StylizerURL, cfg.ExtractorTimeout)
	}

	server := internalhttp.NewServer(cfg, coordinator, bus, extractor, stylizer)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("statesync http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
