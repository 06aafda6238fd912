package http

import (
	"context"
	"errors"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hxuan190/split-router/internal/aggregator"
	"github.com/hxuan190/split-router/internal/config"
	"github.com/hxuan190/split-router/internal/http/httputil"
	"github.com/hxuan190/split-router/internal/http/middlewares"
	"github.com/hxuan190/split-router/internal/services"
)

const (
	API_VERSION  = "v1"
	HTTP_SERVICE = "http-service"
)

type HTTPService struct {
	logger      *services.ServiceLogger
	rateLimiter *middlewares.RateLimiter
	server      *gohttp.Server
	conf        *config.GeneralConfig
	engine      *gin.Engine

	handlers []httputil.IHttpHandler
}

func NewHTTPService(conf *config.GeneralConfig, aggregatorSvc *aggregator.Service, logger zerolog.Logger) (*HTTPService, error) {
	if conf == nil || aggregatorSvc == nil {
		return nil, errors.New("invalid server config")
	}
	svc := &HTTPService{
		conf:        conf,
		rateLimiter: middlewares.NewRateLimiter(conf.RateLimitRPS, conf.RateLimitBurst),
		handlers: []httputil.IHttpHandler{
			NewQuoteHandler(aggregatorSvc),
			NewSnapshotHandler(aggregatorSvc),
		},
	}
	svc.logger = services.NewServiceLogger(logger, svc)
	svc.engine = svc.buildEngine()
	return svc, nil
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

func (svc *HTTPService) buildEngine() *gin.Engine {
	if svc.conf.Env == config.ProdEnv {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders(middlewares.RequestIDHeader)
	corsConf.AddExposeHeaders(middlewares.RequestIDHeader, "X-Quote-ID")
	r.Use(cors.New(corsConf))

	r.Use(middlewares.RequestID())
	r.Use(middlewares.MetricsMiddleware())
	r.Use(svc.rateLimiter.RateLimitMiddleware())
	r.Use(middlewares.Timeout(svc.conf.RequestTimeout))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api")
	pub := api.Group(API_VERSION)
	priv := api.Group(API_VERSION)
	admin := api.Group(API_VERSION + "/admin")
	svc.setupHandlers(pub, priv, admin)
	return r
}

func (svc *HTTPService) Handler() gohttp.Handler {
	return svc.engine
}

// Start serves until Stop is called.
func (svc *HTTPService) Start() error {
	svc.server = &gohttp.Server{
		Addr:              svc.conf.Addr(),
		Handler:           svc.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	svc.logger.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && !errors.Is(err, gohttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (svc *HTTPService) Stop(ctx context.Context) error {
	if svc.server == nil {
		return nil
	}
	if err := svc.server.Shutdown(ctx); err != nil {
		svc.logger.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	svc.logger.Info().Msg("http server stopped gracefully")
	return nil
}

func (svc *HTTPService) setupHandlers(
	rootPub *gin.RouterGroup,
	rootPriv *gin.RouterGroup,
	rootAdmin *gin.RouterGroup,
) {
	for _, h := range svc.handlers {
		pub := rootPub.Group(h.Root())
		priv := rootPriv.Group(h.Root())
		admin := rootAdmin.Group(h.Root())
		h.SetRoutes(pub, priv, admin)
	}
}
