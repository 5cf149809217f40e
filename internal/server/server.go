package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/observability"
	obsmiddleware "github.com/smallbiznis/paysite/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/paysite/internal/observability/metrics"
	obstracing "github.com/smallbiznis/paysite/internal/observability/tracing"
	"github.com/smallbiznis/paysite/internal/payment/checkout"
	"github.com/smallbiznis/paysite/internal/payment/webhook"
	"github.com/smallbiznis/paysite/internal/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewSessionStore),
	fx.Provide(render.NewResultRenderer),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	sites      *config.SitesHolder
	checkout   *checkout.Service
	webhookSvc *webhook.Service
	sessions   *SessionStore
	renderer   *render.ResultRenderer
	log        *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Sites    *config.SitesHolder `optional:"true"`
	Checkout *checkout.Service
	Webhook  *webhook.Service
	Sessions *SessionStore
	Renderer *render.ResultRenderer
	Log      *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		sites:      p.Sites,
		checkout:   p.Checkout,
		webhookSvc: p.Webhook,
		sessions:   p.Sessions,
		renderer:   p.Renderer,
		log:        p.Log.Named("http"),
	}

	svc.registerPaymentRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerPaymentRoutes also serves the .php paths that merchant sites and
// the provider dashboard already link to.
func (s *Server) registerPaymentRoutes() {
	for _, path := range []string{"/", "/index.php"} {
		s.engine.GET(path, s.HandleCheckout)
		s.engine.POST(path, s.HandleCheckout)
	}
	for _, path := range []string{"/result", "/result.php"} {
		s.engine.GET(path, s.HandleResult)
	}
	for _, path := range []string{"/webhook", "/webhook.php"} {
		s.engine.POST(path, JSONErrors(), s.HandleWebhook)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
