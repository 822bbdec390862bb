// Package mocks holds testify mocks of the assistant's external collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/types"
)

// MockPlatform is a mock commerce.Platform
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) Name() string { return "mock" }

func (m *MockPlatform) SearchProducts(ctx context.Context, query string, limit int) ([]commerce.Product, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.Product), args.Error(1)
}

func (m *MockPlatform) GetProduct(ctx context.Context, id string) (*commerce.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Product), args.Error(1)
}

func (m *MockPlatform) CreateCheckout(ctx context.Context, req commerce.CheckoutRequest) (*commerce.Checkout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Checkout), args.Error(1)
}

func (m *MockPlatform) GetOrder(ctx context.Context, number, email string) (*commerce.Order, error) {
	args := m.Called(ctx, number, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Order), args.Error(1)
}

// MockResolver is a mock service.PlatformResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ForShop(ctx context.Context, shopDomain string) (commerce.Platform, error) {
	args := m.Called(ctx, shopDomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(commerce.Platform), args.Error(1)
}

// MockGenerator is a mock service.Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, req service.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockObjectStore is a mock service.ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

// MockTokenValidator is a mock middleware.TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(token string) (*types.SessionTokenClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SessionTokenClaims), args.Error(1)
}
