package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bobarin/auctioneer/internal/api"
	"github.com/bobarin/auctioneer/internal/config"
	"github.com/bobarin/auctioneer/internal/ingest"
	"github.com/bobarin/auctioneer/internal/jobs"
	"github.com/bobarin/auctioneer/internal/logging"
	"github.com/bobarin/auctioneer/internal/services"
	"github.com/bobarin/auctioneer/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", false)
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	log.Info().Str("port", cfg.APIPort).Msg("Starting auction API...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, local, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer closeStore()
	log.Info().Str("backend", store.Name()).Msg("Initialized avatar storage")

	// Job ledger: Redis when configured, otherwise in-process
	var ledger jobs.Ledger
	if cfg.RedisURL != "" {
		ledger, err = jobs.NewRedis(cfg.RedisURL, cfg.LedgerTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Connected to Redis job ledger")
	} else {
		ledger = jobs.NewMemory(cfg.LedgerTTL)
	}
	defer ledger.Close()

	roster, err := config.LoadRoster(cfg.AvatarsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load avatar roster")
	}

	var limiter *rate.Limiter
	if cfg.VendorRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.VendorRateLimit), 1)
	}

	did := services.NewDIDService(services.DIDConfig{
		APIKey:        cfg.DIDAPIKey,
		BaseURL:       cfg.DIDBaseURL,
		PublicBaseURL: cfg.PublicBaseURL,
		Limiter:       limiter,
		Logger:        log,
	})
	if !did.Configured() {
		log.Warn().Msg("DID_API_KEY not set: vendor endpoints answer 500 and the page falls back to local speech")
	}

	// Create API handler
	handler := api.NewHandler(did, ingest.New(store, log), ledger, roster, log)
	router := api.NewRouter(handler, api.RouterConfig{
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		Avatars:            local,
		Logger:             logging.Component(log, "http"),
	})

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		return
	}
	log.Info().Msg("Server exited")
}

// openStore picks the avatar store. Only the local store needs a static
// file server; the others return absolute URLs.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.Store, *storage.Local, func(), error) {
	switch cfg.StorageBackend {
	case "supabase":
		s := storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, cfg.StorageFolder, log)
		return s, nil, func() {}, nil
	case "gcs":
		s, err := storage.NewGCS(ctx, cfg.GCSBucket, cfg.StorageFolder)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, func() { s.Close() }, nil
	default:
		local := storage.NewLocal(filepath.Join(cfg.PublicDir, "avatars"), storage.DefaultPublicPrefix)
		return local, local, func() {}, nil
	}
}
