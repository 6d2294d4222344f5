package store

import (
	"context"
	"testing"

	"order-sync-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	shirt := &models.Product{SKU: strPtr("SHIRT"), Name: "Shirt", Price: 1000}
	mug := &models.Product{SKU: strPtr("MUG"), Name: "Mug", Price: 500}
	require.NoError(t, s.CreateProduct(ctx, shirt))
	require.NoError(t, s.CreateProduct(ctx, mug))

	order := &models.Order{
		OrderNumber:      "1001",
		BillingEmail:     "a@b.co",
		BillingFirstName: "Ann",
		BillingLastName:  "Lee",
		Status:           models.OrderStatusPending,
	}
	items := []models.LineItem{
		{ProductID: int64Ptr(mug.ID), Quantity: 2, UnitTotal: 500},
		{ProductID: int64Ptr(shirt.ID), Quantity: 1, UnitTotal: 1000},
	}
	require.NoError(t, s.CreateOrder(ctx, order, items))
	assert.NotZero(t, order.ID)

	got, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1001", got.OrderNumber)
	assert.Equal(t, "a@b.co", got.BillingEmail)
	assert.False(t, got.Synced)
	assert.Nil(t, got.SyncedAt)

	lineItems, err := s.GetLineItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, lineItems, 2)
	assert.Equal(t, "Mug", lineItems[0].Product.Name)
	assert.Equal(t, "Shirt", lineItems[1].Product.Name)
	assert.Equal(t, 2, lineItems[0].Quantity)
}

func TestGetOrderByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetOrderByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLineItemsWithDeletedProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gone := &models.Product{SKU: strPtr("GONE"), Name: "Gone"}
	require.NoError(t, s.CreateProduct(ctx, gone))

	order := &models.Order{Status: models.OrderStatusCompleted}
	items := []models.LineItem{
		{ProductID: int64Ptr(gone.ID), Quantity: 1},
		{Quantity: 1},
	}
	require.NoError(t, s.CreateOrder(ctx, order, items))
	require.NoError(t, s.DeleteProduct(ctx, gone.ID))

	lineItems, err := s.GetLineItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, lineItems, 2)
	assert.Nil(t, lineItems[0].Product)
	require.NotNil(t, lineItems[0].ProductID)
	assert.Equal(t, gone.ID, *lineItems[0].ProductID)
	assert.Nil(t, lineItems[1].Product)
}

func TestUpdateOrderStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	order := &models.Order{Status: models.OrderStatusPending}
	require.NoError(t, s.CreateOrder(ctx, order, nil))

	previous, err := s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, previous)

	got, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)

	_, err = s.UpdateOrderStatus(ctx, order.ID+100, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}
