package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/storefront-assistant/backend/internal/logging"
	"github.com/pageza/storefront-assistant/backend/internal/testhelpers"
)

func TestNormalizeShopDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "acme.myshopify.com", want: "acme.myshopify.com"},
		{in: "  HTTPS://Acme.MyShopify.com/admin?x=1 ", want: "acme.myshopify.com"},
		{in: "http://localhost.test:8080", want: "localhost.test"},
		{in: "acme", wantErr: true},
		{in: "", wantErr: true},
		{in: "bad_domain.com", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeShopDomain(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidShopDomain, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func newTestShopService(t *testing.T) *ShopService {
	t.Helper()
	cipher, err := NewTokenCipher(testEncryptionKey)
	require.NoError(t, err)
	return NewShopService(testhelpers.NewSQLiteDB(t), cipher, logging.Discard())
}

func TestShopServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestShopService(t)

	var changed []string
	svc.OnChange(func(domain string) { changed = append(changed, domain) })

	shop, err := svc.Install(ctx, InstallShopRequest{Domain: "https://Acme.myshopify.com", AccessToken: "shpat_1"})
	require.NoError(t, err)
	assert.Equal(t, "acme.myshopify.com", shop.Domain)
	assert.Equal(t, "acme.myshopify.com", shop.Name)
	assert.NotEqual(t, "shpat_1", shop.EncryptedAccessToken)

	token, err := svc.AccessToken(ctx, "acme.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_1", token)

	// reinstall rotates the token and keeps the row
	again, err := svc.Install(ctx, InstallShopRequest{Domain: "acme.myshopify.com", Name: "Acme", AccessToken: "shpat_2"})
	require.NoError(t, err)
	assert.Equal(t, shop.ID, again.ID)
	token, err = svc.AccessToken(ctx, "acme.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_2", token)

	_, err = svc.Install(ctx, InstallShopRequest{Domain: "zeta.myshopify.com", AccessToken: "shpat_z"})
	require.NoError(t, err)

	shops, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, shops, 2)
	assert.Equal(t, "acme.myshopify.com", shops[0].Domain)
	assert.Equal(t, "Acme", shops[0].Name)

	require.NoError(t, svc.Uninstall(ctx, "acme.myshopify.com"))
	_, err = svc.Get(ctx, "acme.myshopify.com")
	assert.ErrorIs(t, err, ErrShopNotFound)
	assert.ErrorIs(t, svc.Uninstall(ctx, "acme.myshopify.com"), ErrShopNotFound)

	restored, err := svc.Install(ctx, InstallShopRequest{Domain: "acme.myshopify.com", AccessToken: "shpat_3"})
	require.NoError(t, err)
	assert.Equal(t, shop.ID, restored.ID)
	assert.Equal(t, "Acme", restored.Name)

	assert.Equal(t, []string{
		"acme.myshopify.com", "acme.myshopify.com", "zeta.myshopify.com",
		"acme.myshopify.com", "acme.myshopify.com",
	}, changed)
}

func TestShopServiceInstallValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestShopService(t)

	_, err := svc.Install(ctx, InstallShopRequest{Domain: "nope", AccessToken: "x"})
	assert.ErrorIs(t, err, ErrInvalidShopDomain)

	_, err = svc.Install(ctx, InstallShopRequest{Domain: "acme.myshopify.com", AccessToken: "  "})
	assert.ErrorIs(t, err, ErrMissingAccessToken)

	readOnly := NewShopService(testhelpers.NewSQLiteDB(t), nil, logging.Discard())
	_, err = readOnly.Install(ctx, InstallShopRequest{Domain: "acme.myshopify.com", AccessToken: "x"})
	assert.ErrorIs(t, err, ErrEncryptionNotEnabled)
}
