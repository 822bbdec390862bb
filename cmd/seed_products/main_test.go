package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProducts(t *testing.T) {
	t.Run("demo catalog", func(t *testing.T) {
		products, err := loadProducts("")
		require.NoError(t, err)
		assert.Equal(t, demoProducts, products)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`products:
  - handle: camp-mug
    title: Enamel Camp Mug
    tags: [camping, mug]
    price: "14.50"
    inventory: 12
  - handle: tent-stakes
    title: Tent Stakes
    price: "900"
    currency: jpy
`), 0o600))

		products, err := loadProducts(path)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, int64(1450), products[0].PriceCents)
		assert.Equal(t, "USD", products[0].Currency)
		assert.Equal(t, 12, products[0].InventoryQuantity)
		assert.Equal(t, []string{"camping", "mug"}, []string(products[0].Tags))
		assert.Equal(t, int64(900), products[1].PriceCents)
		assert.Equal(t, "JPY", products[1].Currency)
	})

	t.Run("bad price", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("products:\n  - handle: x\n    price: free\n"), 0o600))
		_, err := loadProducts(path)
		assert.Error(t, err)
	})
}
