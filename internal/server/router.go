package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiro-gateway/kiro-gateway/internal/auth"
	"github.com/kiro-gateway/kiro-gateway/internal/config"
	"github.com/kiro-gateway/kiro-gateway/internal/logger"
	"github.com/kiro-gateway/kiro-gateway/internal/metrics"
	"github.com/kiro-gateway/kiro-gateway/internal/modelcache"
	"github.com/kiro-gateway/kiro-gateway/internal/upstreamclient"
)

// New builds the gateway's gin.Engine: every inbound route wired to its
// handler closures and middleware, all in one router-construction
// function rather than a framework-managed registry.
func New(
	cfg *config.Config,
	log *logger.Logger,
	authMgr *auth.Manager,
	upstream *upstreamclient.Client,
	modelCache *modelcache.Cache,
	metricsReg *metrics.Registry,
	promReg *prometheus.Registry,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(CORS(cfg.CORSAllowedOrigins))
	r.Use(ObserveRequests(metricsReg))

	d := &deps{
		cfg:        cfg,
		log:        log,
		upstream:   upstream,
		modelCache: modelCache,
		authMgr:    authMgr,
	}

	r.GET("/", d.Root)
	r.GET("/health", d.Health)
	r.GET("/metrics", metrics.Handler(promReg))

	authed := r.Group("/")
	authed.Use(RequireProxyAPIKey(cfg), RateLimit(cfg.RateLimitPerMinute))
	authed.GET("/v1/models", d.ListModels)
	authed.POST("/v1/chat/completions", d.ChatCompletions)
	authed.POST("/v1/messages", d.Messages)

	return r
}
