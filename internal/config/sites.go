package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SiteSettings are the per-site overrides read from customize.yml.
type SiteSettings struct {
	Hooks        string          `mapstructure:"hooks"`
	BackURL      string          `mapstructure:"back_url"`
	PaysiteTitle string          `mapstructure:"paysite_title"`
	Booking      BookingSettings `mapstructure:"booking"`
}

// BookingSettings configure the built-in booking hooks.
type BookingSettings struct {
	Table       string `mapstructure:"table"`
	Source      string `mapstructure:"source"`
	ProductName string `mapstructure:"product_name"`
}

type SitesConfig struct {
	Sites map[string]SiteSettings `mapstructure:"sites"`
}

// Site returns the settings for name, matched case-insensitively.
func (c SitesConfig) Site(name string) (SiteSettings, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for key, site := range c.Sites {
		if strings.ToLower(strings.TrimSpace(key)) == name {
			return site, true
		}
	}
	return SiteSettings{}, false
}

// SitesHolder keeps the latest valid sites config and swaps it on file change.
type SitesHolder struct {
	current atomic.Value // holds SitesConfig
}

// NewSitesHolder reads customize.yml from the customization dir (or the
// working directory). A missing file yields an empty config.
func NewSitesHolder(cfg Config, log *zap.Logger) (*SitesHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.sites")

	// Site names are host names, so "." cannot be the key delimiter.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigName("customize")
	v.SetConfigType("yml")
	if dir := strings.TrimSpace(cfg.CustomizationDir); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	holder := &SitesHolder{}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Debug("no customize.yml found, using defaults")
		holder.current.Store(SitesConfig{})
		return holder, nil
	}

	sites, err := decodeSites(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(sites)
	log.Info("sites config loaded", zap.String("file", v.ConfigFileUsed()), zap.Int("sites", len(sites.Sites)))

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSites(v)
		if err != nil {
			log.Warn("invalid sites config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("sites config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticSitesHolder wraps a fixed config, for tests and embedding.
func NewStaticSitesHolder(sites SitesConfig) *SitesHolder {
	holder := &SitesHolder{}
	holder.current.Store(sites)
	return holder
}

func (h *SitesHolder) Get() SitesConfig {
	if h == nil {
		return SitesConfig{}
	}
	sites, _ := h.current.Load().(SitesConfig)
	return sites
}

func decodeSites(v *viper.Viper) (SitesConfig, error) {
	var sites SitesConfig
	if err := v.Unmarshal(&sites); err != nil {
		return SitesConfig{}, err
	}
	for name, site := range sites.Sites {
		if strings.TrimSpace(name) == "" {
			return SitesConfig{}, errors.New("sites: empty site name")
		}
		if site.Booking.Table != "" && !identPattern.MatchString(site.Booking.Table) {
			return SitesConfig{}, fmt.Errorf("sites::%s::booking::table: invalid table name %q", name, site.Booking.Table)
		}
	}
	return sites, nil
}
