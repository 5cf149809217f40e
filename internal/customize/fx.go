package customize

import (
	"strings"

	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Sites    *config.SitesHolder
	Registry *Registry
	DB       *gorm.DB `optional:"true"`
	Log      *zap.Logger
	Metrics  *metrics.Metrics        `optional:"true"`
	Webhook  *metrics.WebhookMetrics `optional:"true"`
}

// NewSiteInvoker resolves the hooks of the configured site once. A site that
// is not configured, or names an unknown kind, runs with NopHooks.
func NewSiteInvoker(p Params) *Invoker {
	log := p.Log.Named("customize")
	siteName := strings.TrimSpace(p.Cfg.SiteName)

	site, ok := p.Sites.Get().Site(siteName)
	if !ok || strings.TrimSpace(site.Hooks) == "" {
		log.Info("no customization configured", zap.String("site", siteName))
		return NewInvoker(NopHooks{}, "", log, p.Metrics, p.Webhook)
	}

	hooks, err := p.Registry.NewHooks(site.Hooks, site, Deps{DB: p.DB, Log: p.Log})
	if err != nil {
		log.Warn("customization unavailable, using defaults",
			zap.String("site", siteName),
			zap.String("kind", site.Hooks),
			zap.Error(err),
		)
		return NewInvoker(NopHooks{}, "", log, p.Metrics, p.Webhook)
	}

	log.Info("customization loaded", zap.String("site", siteName), zap.String("kind", site.Hooks))
	return NewInvoker(hooks, normalizeKind(site.Hooks), log, p.Metrics, p.Webhook)
}

var Module = fx.Module("customize",
	fx.Provide(func() *Registry {
		return NewRegistry(NewBookingFactory())
	}),
	fx.Provide(NewSiteInvoker),
)
