package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/docuglean/internal/config"
	logpkg "github.com/local/docuglean/internal/logger"
	"github.com/local/docuglean/internal/metrics"
	"github.com/local/docuglean/internal/parsers"
	"github.com/local/docuglean/internal/store"
	"github.com/local/docuglean/internal/web"
	"github.com/local/docuglean/pkg/docuglean"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
		AxiomLevel:   cfg.Axiom.Level,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to init logger")
	}
	defer logpkg.Close()

	metrics.Init()

	opts := []docuglean.Option{
		docuglean.WithTimeout(cfg.Providers.RequestTimeout),
		docuglean.WithAWS(cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey),
		docuglean.WithMaxDocumentBytes(cfg.Server.MaxUploadMB << 20),
		docuglean.WithConverter(cfg.Convert.Binary, cfg.Convert.Workers, cfg.Convert.Timeout),
	}
	apiKeys := map[docuglean.Backend]string{}
	models := map[docuglean.Backend]string{}
	for _, b := range []docuglean.Backend{docuglean.Mistral, docuglean.OpenAI, docuglean.Gemini, docuglean.Anthropic} {
		p, _ := cfg.Providers.Get(b.String())
		if p.BaseURL != "" {
			opts = append(opts, docuglean.WithBaseURL(b, p.BaseURL))
		}
		apiKeys[b] = p.APIKey
		models[b] = p.Model
	}
	client := docuglean.New(opts...)

	results, err := store.Open(cfg.Store.RedisURL, cfg.Store.ResultTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open result store")
	}
	defer results.Close()

	conv := parsers.NewConverter(cfg.Convert.Workers)
	conv.Binary = cfg.Convert.Binary

	srv := web.New(client, results, web.Config{
		UploadDir:      cfg.Server.UploadDir,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		UploadMaxAge:   cfg.Server.UploadMaxAge,
		DefaultBackend: docuglean.Backend(cfg.Providers.Default),
		APIKeys:        apiKeys,
		Models:         models,
		ChunkSize:      cfg.Classify.ChunkSize,
		MaxConcurrent:  cfg.Classify.MaxConcurrent,
		Converter:      conv,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpSrv.Addr).Str("default_provider", cfg.Providers.Default).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
