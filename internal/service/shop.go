package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/internal/models"
)

var (
	ErrShopNotFound         = errors.New("shop not found")
	ErrInvalidShopDomain    = errors.New("invalid shop domain")
	ErrMissingAccessToken   = errors.New("access token is required")
	ErrEncryptionNotEnabled = errors.New("token encryption key is not configured")
)

var shopDomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// NormalizeShopDomain lower-cases a domain and strips scheme, path and port
func NormalizeShopDomain(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 {
		d = d[:i]
	}
	if !shopDomainPattern.MatchString(d) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShopDomain, domain)
	}
	return d, nil
}

// InstallShopRequest registers a shop and its Admin API token
type InstallShopRequest struct {
	Domain      string `json:"domain" binding:"required"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token" binding:"required"`
	Scopes      string `json:"scopes"`
}

// ShopService manages installed shops and their encrypted access tokens
type ShopService struct {
	db     *gorm.DB
	cipher *TokenCipher
	log    logrus.FieldLogger

	mu        sync.RWMutex
	listeners []func(domain string)
}

// NewShopService creates a shop service. cipher may be nil, in which case
// shops can be read but not installed.
func NewShopService(db *gorm.DB, cipher *TokenCipher, log logrus.FieldLogger) *ShopService {
	return &ShopService{db: db, cipher: cipher, log: log}
}

// OnChange registers fn to run after a shop is installed or removed
func (s *ShopService) OnChange(fn func(domain string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *ShopService) notify(domain string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.listeners {
		fn(domain)
	}
}

// Install creates or refreshes a shop. Reinstalling a removed shop restores it.
func (s *ShopService) Install(ctx context.Context, req InstallShopRequest) (*models.Shop, error) {
	domain, err := NormalizeShopDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return nil, ErrMissingAccessToken
	}
	if s.cipher == nil {
		return nil, ErrEncryptionNotEnabled
	}

	sealed, err := s.cipher.Encrypt(strings.TrimSpace(req.AccessToken))
	if err != nil {
		return nil, err
	}

	var shop models.Shop
	err = s.db.WithContext(ctx).Unscoped().Where("domain = ?", domain).First(&shop).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up shop: %w", err)
	}

	shop.Domain = domain
	shop.Platform = "shopify"
	shop.EncryptedAccessToken = sealed
	shop.Scopes = req.Scopes
	shop.InstalledAt = time.Now().UTC()
	shop.DeletedAt = gorm.DeletedAt{}
	if req.Name != "" {
		shop.Name = req.Name
	} else if shop.Name == "" {
		shop.Name = domain
	}

	if err := s.db.WithContext(ctx).Unscoped().Save(&shop).Error; err != nil {
		return nil, fmt.Errorf("failed to save shop: %w", err)
	}

	s.log.WithField("shop", domain).Info("[Shops] shop installed")
	s.notify(domain)
	return &shop, nil
}

// Get returns an installed shop
func (s *ShopService) Get(ctx context.Context, domain string) (*models.Shop, error) {
	domain, err := NormalizeShopDomain(domain)
	if err != nil {
		return nil, err
	}
	var shop models.Shop
	err = s.db.WithContext(ctx).Where("domain = ?", domain).First(&shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &shop, nil
}

// AccessToken returns the decrypted Admin API token of an installed shop
func (s *ShopService) AccessToken(ctx context.Context, domain string) (string, error) {
	shop, err := s.Get(ctx, domain)
	if err != nil {
		return "", err
	}
	if s.cipher == nil {
		return "", ErrEncryptionNotEnabled
	}
	return s.cipher.Decrypt(shop.EncryptedAccessToken)
}

// Uninstall soft-deletes a shop and forgets its token
func (s *ShopService) Uninstall(ctx context.Context, domain string) error {
	domain, err := NormalizeShopDomain(domain)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.Shop{}).Where("domain = ?", domain).Update("encrypted_access_token", "")
	if result.Error != nil {
		return fmt.Errorf("failed to clear shop token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrShopNotFound
	}
	if err := s.db.WithContext(ctx).Where("domain = ?", domain).Delete(&models.Shop{}).Error; err != nil {
		return fmt.Errorf("failed to delete shop: %w", err)
	}

	s.log.WithField("shop", domain).Info("[Shops] shop uninstalled")
	s.notify(domain)
	return nil
}

// List returns installed shops ordered by domain
func (s *ShopService) List(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	if err := s.db.WithContext(ctx).Order("domain ASC").Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	return shops, nil
}
