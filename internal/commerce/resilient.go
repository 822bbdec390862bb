package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Resilient wraps a Platform with a circuit breaker and a short-lived cache
// for searches. Product reads, checkouts and order lookups are never cached
// so stock is current when it matters.
type Resilient struct {
	next    Platform
	breaker *gobreaker.CircuitBreaker
	cache   *cache.Cache
	log     logrus.FieldLogger
}

// ResilientOptions tunes the breaker and cache
type ResilientOptions struct {
	CacheTTL         time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// NewResilient decorates next. Zero option values fall back to
// 5m cache, 5 consecutive failures and 30s open state.
func NewResilient(name string, next Platform, opts ResilientOptions, log logrus.FieldLogger) *Resilient {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	log = log.WithField("breaker", name)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("[Commerce] circuit breaker state changed")
		},
		// Shopper mistakes must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrProductNotFound) ||
				errors.Is(err, ErrOrderNotFound) ||
				errors.Is(err, ErrEmptyCart) ||
				errors.Is(err, ErrOutOfStock)
		},
	})

	return &Resilient{
		next:    next,
		breaker: breaker,
		cache:   cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		log:     log,
	}
}

// Name implements Platform
func (r *Resilient) Name() string { return r.next.Name() }

// State exposes the breaker state for health reporting
func (r *Resilient) State() gobreaker.State { return r.breaker.State() }

func (r *Resilient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := r.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	return result, err
}

// SearchProducts implements Platform
func (r *Resilient) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	key := fmt.Sprintf("search:%d:%s", limit, strings.ToLower(strings.TrimSpace(query)))
	if cached, ok := r.cache.Get(key); ok {
		return cached.([]Product), nil
	}

	result, err := r.execute(func() (interface{}, error) {
		return r.next.SearchProducts(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	products := result.([]Product)
	r.cache.Set(key, products, cache.DefaultExpiration)
	return products, nil
}

// GetProduct implements Platform. It always asks the platform.
func (r *Resilient) GetProduct(ctx context.Context, id string) (*Product, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.next.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Product), nil
}

// CreateCheckout implements Platform
func (r *Resilient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.next.CreateCheckout(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Checkout), nil
}

// GetOrder implements Platform
func (r *Resilient) GetOrder(ctx context.Context, number, email string) (*Order, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.next.GetOrder(ctx, number, email)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Order), nil
}

// Flush drops every cached search
func (r *Resilient) Flush() {
	r.cache.Flush()
}
