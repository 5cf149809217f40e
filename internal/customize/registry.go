package customize

import (
	"errors"
	"strings"

	"github.com/smallbiznis/paysite/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrKindNotFound = errors.New("customization_kind_not_found")

// Deps are the shared resources a hook factory may use.
type Deps struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// Factory builds the hooks of one customization kind.
type Factory interface {
	Kind() string
	New(site config.SiteSettings, deps Deps) (CustomizationHooks, error)
}

type Registry struct {
	factories map[string]Factory
}

func NewRegistry(factories ...Factory) *Registry {
	registry := &Registry{factories: map[string]Factory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		kind := normalizeKind(factory.Kind())
		if kind == "" {
			continue
		}
		registry.factories[kind] = factory
	}
	return registry
}

func (r *Registry) KindExists(kind string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalizeKind(kind)]
	return ok
}

func (r *Registry) NewHooks(kind string, site config.SiteSettings, deps Deps) (CustomizationHooks, error) {
	if r == nil {
		return nil, ErrKindNotFound
	}
	factory, ok := r.factories[normalizeKind(kind)]
	if !ok {
		return nil, ErrKindNotFound
	}
	return factory.New(site, deps)
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
