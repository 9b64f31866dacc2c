package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiro-gateway/kiro-gateway/internal/auth"
	"github.com/kiro-gateway/kiro-gateway/internal/config"
	"github.com/kiro-gateway/kiro-gateway/internal/httpclient"
	"github.com/kiro-gateway/kiro-gateway/internal/logger"
	"github.com/kiro-gateway/kiro-gateway/internal/metrics"
	"github.com/kiro-gateway/kiro-gateway/internal/modelcache"
	"github.com/kiro-gateway/kiro-gateway/internal/server"
	"github.com/kiro-gateway/kiro-gateway/internal/upstreamclient"
)

func main() {
	cfg := config.Load()
	logCfg := logger.FromLevelString(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logCfg.Format = "json"
	}
	log := logger.New(logCfg)

	creds := auth.CredentialSet{
		RefreshToken:     cfg.RefreshToken,
		ProfileARN:       cfg.ProfileARN,
		Region:           cfg.Region,
		IdentityProvider: cfg.IdentityProvider,
	}
	if cfg.CredentialsFile != "" {
		if fileCreds, err := auth.LoadCredentialsFile(cfg.CredentialsFile); err != nil {
			log.LogError(context.Background(), err, "failed to load credentials file, falling back to environment values")
		} else if fileCreds != nil {
			creds = *fileCreds
		}
	}

	refresher := auth.NewHTTPRefresher(cfg.AuthEndpoint)
	authMgr := auth.NewManager(creds, time.Duration(cfg.TokenRefreshThresholdSeconds)*time.Second, cfg.CredentialsFile, refresher, log)

	metricsReg, promReg := metrics.New()
	authMgr.OnRefresh(func(outcome string) {
		metricsReg.AuthRefreshTotal.WithLabelValues(outcome).Inc()
	})

	httpClient := httpclient.New(cfg, authMgr, log).WithMetrics(metricsReg)

	upstream := &upstreamclient.Client{
		HTTP:             httpClient,
		APIEndpoint:      cfg.APIEndpoint,
		MetadataEndpoint: cfg.MetadataEndpoint,
		ProfileARN:       cfg.ProfileARN,
	}

	modelCache := modelcache.New(cfg.ModelCacheTTL, cfg.DefaultMaxInputTokens, upstream, log)
	modelCache.OnUpdate(func(size int) {
		metricsReg.ModelCacheSize.Set(float64(size))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go modelCache.Run(ctx)

	router := server.New(cfg, log, authMgr, upstream, modelCache, metricsReg, promReg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithComponent("server").Info("listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(context.Background(), err, "server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.WithComponent("server").Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(shutdownCtx, err, "graceful shutdown failed")
	}
}
