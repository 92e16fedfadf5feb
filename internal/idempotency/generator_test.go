package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator_GenerateKey_Deterministic(t *testing.T) {
	g := NewGenerator()

	params := map[string]interface{}{
		"payment_request_id": "pr_1",
		"attempt_count":      2,
	}

	key1 := g.GenerateKey(ScopePayment, params)
	key2 := g.GenerateKey(ScopePayment, params)

	assert.Equal(t, key1, key2)
	assert.Contains(t, key1, string(ScopePayment)+"-")
}

func TestGenerator_GenerateKey_OrderIndependent(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopePayment, map[string]interface{}{"a": 1, "b": 2})
	b := g.GenerateKey(ScopePayment, map[string]interface{}{"b": 2, "a": 1})

	assert.Equal(t, a, b)
}

func TestGenerator_GenerateKey_DiffersByParams(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopePayment, map[string]interface{}{"payment_request_id": "pr_1", "attempt_count": 1})
	b := g.GenerateKey(ScopePayment, map[string]interface{}{"payment_request_id": "pr_1", "attempt_count": 2})

	assert.NotEqual(t, a, b)
}

func TestGenerator_ValidateKey(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{"invoice_id": "inv_1"}

	key := g.GenerateKey(ScopeOneOffInvoice, params)

	assert.True(t, g.ValidateKey(ScopeOneOffInvoice, params, key))
	assert.False(t, g.ValidateKey(ScopeOneOffInvoice, map[string]interface{}{"invoice_id": "inv_2"}, key))
}
