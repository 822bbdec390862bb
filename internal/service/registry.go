package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/commerce"
)

// ErrShopNotInstalled is returned for shops with no platform connection when
// the local catalog is off
var ErrShopNotInstalled = errors.New("shop is not installed")

// PlatformResolver finds the commerce platform serving a shop
type PlatformResolver interface {
	ForShop(ctx context.Context, shopDomain string) (commerce.Platform, error)
}

// RegistryOptions configures a PlatformRegistry
type RegistryOptions struct {
	APIVersion          string
	LocalCatalogEnabled bool
	PublicBaseURL       string
	Resilience          commerce.ResilientOptions
	// StaticShopDomain and StaticAccessToken connect one shop from config
	// without an install step
	StaticShopDomain  string
	StaticAccessToken string
	ShopifyOptions    []commerce.ShopifyOption
}

// RegistryOptionsFromConfig maps application config onto RegistryOptions
func RegistryOptionsFromConfig(cfg *config.Config) RegistryOptions {
	return RegistryOptions{
		APIVersion:          cfg.ShopifyAPIVersion,
		LocalCatalogEnabled: cfg.LocalCatalogEnabled,
		PublicBaseURL:       cfg.PublicBaseURL,
		Resilience:          commerce.ResilientOptions{CacheTTL: cfg.ProductCacheTTL},
		StaticShopDomain:    cfg.ShopifyShopDomain,
		StaticAccessToken:   cfg.ShopifyAccessToken,
	}
}

// PlatformRegistry hands out one platform client per shop. Shopify clients
// are kept for later turns until the shop changes; local catalogs are built
// per call since any domain may reach them.
type PlatformRegistry struct {
	shops    *ShopService
	db       *gorm.DB
	embedder commerce.Embedder
	opts     RegistryOptions
	log      logrus.FieldLogger

	mu        sync.Mutex
	platforms map[string]commerce.Platform
}

// NewPlatformRegistry creates a registry and subscribes it to shop changes
func NewPlatformRegistry(shops *ShopService, db *gorm.DB, embedder commerce.Embedder, opts RegistryOptions, log logrus.FieldLogger) *PlatformRegistry {
	if opts.APIVersion == "" {
		opts.APIVersion = "2024-10"
	}
	if embedder == nil {
		embedder = commerce.HashEmbedder{}
	}
	if d, err := NormalizeShopDomain(opts.StaticShopDomain); err == nil {
		opts.StaticShopDomain = d
	}

	r := &PlatformRegistry{
		shops:     shops,
		db:        db,
		embedder:  embedder,
		opts:      opts,
		log:       log,
		platforms: make(map[string]commerce.Platform),
	}
	if shops != nil {
		shops.OnChange(r.Invalidate)
	}
	return r
}

// ForShop implements PlatformResolver
func (r *PlatformRegistry) ForShop(ctx context.Context, shopDomain string) (commerce.Platform, error) {
	domain, err := NormalizeShopDomain(shopDomain)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if p, ok := r.platforms[domain]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	p, err := r.build(ctx, domain)
	if err != nil {
		return nil, err
	}

	if _, local := p.(*commerce.LocalCatalog); local {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.platforms[domain]; ok {
		return existing, nil
	}
	r.platforms[domain] = p
	return p, nil
}

func (r *PlatformRegistry) build(ctx context.Context, domain string) (commerce.Platform, error) {
	if domain == r.opts.StaticShopDomain && r.opts.StaticAccessToken != "" {
		r.log.WithField("shop", domain).Info("[Registry] using configured Shopify credentials")
		return r.shopify(domain, r.opts.StaticAccessToken), nil
	}

	if r.shops != nil {
		token, err := r.shops.AccessToken(ctx, domain)
		switch {
		case err == nil && token != "":
			r.log.WithField("shop", domain).Info("[Registry] connected installed shop")
			return r.shopify(domain, token), nil
		case err != nil && !errors.Is(err, ErrShopNotFound):
			return nil, fmt.Errorf("failed to load shop credentials: %w", err)
		}
	}

	if r.opts.LocalCatalogEnabled && r.db != nil {
		r.log.WithField("shop", domain).Info("[Registry] serving shop from the local catalog")
		return commerce.NewLocalCatalog(r.db, r.embedder, domain, r.opts.PublicBaseURL, r.log), nil
	}
	return nil, ErrShopNotInstalled
}

func (r *PlatformRegistry) shopify(domain, token string) commerce.Platform {
	client := commerce.NewShopifyClient(domain, token, r.opts.APIVersion, r.log, r.opts.ShopifyOptions...)
	return commerce.NewResilient("shopify:"+domain, client, r.opts.Resilience, r.log)
}

// Invalidate drops the cached platform of a shop
func (r *PlatformRegistry) Invalidate(shopDomain string) {
	domain, err := NormalizeShopDomain(shopDomain)
	if err != nil {
		return
	}
	r.mu.Lock()
	p := r.platforms[domain]
	delete(r.platforms, domain)
	r.mu.Unlock()

	if resilient, ok := p.(*commerce.Resilient); ok {
		resilient.Flush()
	}
}

// BreakerStates reports the circuit breaker state of every connected shop
func (r *PlatformRegistry) BreakerStates() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make(map[string]string, len(r.platforms))
	for domain, p := range r.platforms {
		if resilient, ok := p.(*commerce.Resilient); ok {
			states[domain] = resilient.State().String()
		}
	}
	return states
}
