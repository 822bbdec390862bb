package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name     string
		message  string
		intent   Intent
		entities Entities
	}{
		{"greeting", "Hi there", IntentGreeting, Entities{}},
		{"single words match whole words", "this is nice", IntentGeneral, Entities{Query: "nice"}},
		{"search", "Show me running shoes", IntentSearch, Entities{Query: "running shoes"}},
		{"search phrase", "do you have wool socks?", IntentSearch, Entities{Query: "wool socks"}},
		{"add with quantity", "Add 2 of the trail runners to my cart", IntentAddToCart, Entities{Quantity: 2, Query: "trail runners"}},
		{"add by ordinal", "add the second one", IntentAddToCart, Entities{Quantity: 1, Ordinal: 2}},
		{"add last", "I'll take the last one", IntentAddToCart, Entities{Quantity: 1, Ordinal: OrdinalLast}},
		{"add numbered result", "add number 3 please", IntentAddToCart, Entities{Ordinal: 3}},
		{"quantity is clamped", "add 150 socks", IntentAddToCart, Entities{Quantity: 99, Query: "socks"}},
		{"oversized quantity is clamped", "add 99999999999999999999 socks", IntentAddToCart, Entities{Quantity: 99, Query: "socks"}},
		{"remove", "remove the socks from my cart", IntentRemoveFromCart, Entities{Query: "socks"}},
		{"view cart", "what's in my cart?", IntentViewCart, Entities{}},
		{"checkout phrase", "I want to check out", IntentCheckout, Entities{}},
		{"order status", "where is my order #1001?", IntentOrderStatus, Entities{OrderNumber: "1001", Query: "where"}},
		{"order number forces status", "can you look up order 1002 for Sam@Example.com", IntentOrderStatus,
			Entities{OrderNumber: "1002", Email: "sam@example.com", Query: "look up"}},
		{"tracking", "please track my package", IntentOrderStatus, Entities{Query: "package"}},
		{"help", "how do I return something", IntentHelp, Entities{Query: "return something"}},
		{"fallback", "tell me a joke", IntentGeneral, Entities{Query: "tell joke"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.message)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.entities, got.Entities)
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	c := DefaultClassifier()

	// checkout outranks add, add outranks view cart
	assert.Equal(t, IntentCheckout, c.Classify("add this and checkout").Intent)
	assert.Equal(t, IntentAddToCart, c.Classify("add socks to my cart").Intent)
	assert.Equal(t, IntentRemoveFromCart, c.Classify("remove socks and add shoes").Intent)
}

func TestEntitiesResolveOrdinal(t *testing.T) {
	idx, ok := Entities{Ordinal: 2}.ResolveOrdinal(3)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = Entities{Ordinal: OrdinalLast}.ResolveOrdinal(3)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = Entities{Ordinal: 4}.ResolveOrdinal(3)
	assert.False(t, ok)

	_, ok = Entities{Ordinal: OrdinalLast}.ResolveOrdinal(0)
	assert.False(t, ok)

	_, ok = Entities{}.ResolveOrdinal(3)
	assert.False(t, ok)
}

func TestNewClassifierValidation(t *testing.T) {
	_, err := NewClassifier(IntentTable{})
	assert.Error(t, err)

	_, err = NewClassifier(IntentTable{Rules: []IntentRule{{Intent: "dance", Keywords: []string{"dance"}}}})
	assert.ErrorContains(t, err, "unknown intent")

	_, err = NewClassifier(IntentTable{Rules: []IntentRule{{Intent: IntentHelp}}})
	assert.ErrorContains(t, err, "no keywords")
}

func TestLoadClassifierFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - intent: greeting
    keywords: [ahoy]
  - intent: search
    keywords: [seek, "got any"]
fillers: [me]
`), 0o600))

	c, err := LoadClassifier(path)
	require.NoError(t, err)

	assert.Equal(t, IntentGreeting, c.Classify("Ahoy!").Intent)
	got := c.Classify("got any lanterns for me")
	assert.Equal(t, IntentSearch, got.Intent)
	assert.Equal(t, "lanterns for", got.Entities.Query)
	assert.Equal(t, IntentGeneral, c.Classify("hello").Intent)

	_, err = LoadClassifier(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	c, err = LoadClassifier("")
	require.NoError(t, err)
	assert.Equal(t, IntentGreeting, c.Classify("hello").Intent)
}
