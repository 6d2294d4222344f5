package service

import (
	"strings"

	"order-sync-service/internal/models"
)

// QualifyingProducts returns the products of items that carry a SKU, in item
// order. SKUs are trimmed; items whose product is gone or whose SKU is blank
// are skipped.
func QualifyingProducts(items []models.LineItem) []models.SyncProduct {
	products := make([]models.SyncProduct, 0, len(items))
	for _, item := range items {
		if item.Product == nil || item.Product.SKU == nil {
			continue
		}
		sku := strings.TrimSpace(*item.Product.SKU)
		if sku == "" {
			continue
		}
		products = append(products, models.SyncProduct{SKU: sku, Name: item.Product.Name})
	}
	return products
}

// CustomerName joins the billing names
func CustomerName(order *models.Order) string {
	return strings.TrimSpace(order.BillingFirstName + " " + order.BillingLastName)
}

// BuildPayload builds the outbound document for order
func BuildPayload(order *models.Order, items []models.LineItem) (*models.SyncPayload, error) {
	products := QualifyingProducts(items)
	if len(products) == 0 {
		return nil, ErrNoValidSKUs
	}

	return &models.SyncPayload{
		OrderID:     order.ID,
		OrderNumber: order.Number(),
		Email:       order.BillingEmail,
		Name:        CustomerName(order),
		Products:    products,
	}, nil
}
