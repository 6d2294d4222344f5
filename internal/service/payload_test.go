package service

import (
	"testing"

	"order-sync-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(product *models.Product) models.LineItem {
	return models.LineItem{Quantity: 1, Product: product}
}

func TestBuildPayload(t *testing.T) {
	order := &models.Order{
		ID:               42,
		BillingEmail:     "a@b.co",
		BillingFirstName: "Ann",
		BillingLastName:  "",
	}
	items := []models.LineItem{
		item(&models.Product{SKU: sku("B"), Name: "Second"}),
		item(nil),
		item(&models.Product{SKU: nil, Name: "No SKU"}),
		item(&models.Product{SKU: sku(" \t"), Name: "Whitespace"}),
		item(&models.Product{SKU: sku(" A "), Name: "First"}),
		item(&models.Product{SKU: sku("B"), Name: "Second"}),
	}

	payload, err := BuildPayload(order, items)
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.OrderID)
	assert.Equal(t, "42", payload.OrderNumber)
	assert.Equal(t, "Ann", payload.Name)
	assert.Equal(t, []models.SyncProduct{
		{SKU: "B", Name: "Second"},
		{SKU: "A", Name: "First"},
		{SKU: "B", Name: "Second"},
	}, payload.Products)
}

func TestBuildPayloadNoValidSKUs(t *testing.T) {
	order := &models.Order{ID: 43}

	tests := map[string][]models.LineItem{
		"no items":        nil,
		"null sku":        {item(&models.Product{Name: "Mystery"})},
		"deleted product": {item(nil)},
		"blank sku":       {item(&models.Product{SKU: sku("   "), Name: "Blank"})},
	}

	for name, items := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := BuildPayload(order, items)
			assert.ErrorIs(t, err, ErrNoValidSKUs)
		})
	}
}

func TestBuildPayloadUsesOrderNumber(t *testing.T) {
	order := &models.Order{ID: 7, OrderNumber: "WC-1007"}

	payload, err := BuildPayload(order, []models.LineItem{item(&models.Product{SKU: sku("X"), Name: "X"})})
	require.NoError(t, err)
	assert.Equal(t, "WC-1007", payload.OrderNumber)
}
