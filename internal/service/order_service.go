package service

import (
	"context"
	"errors"
	"fmt"

	"order-sync-service/internal/models"
	"order-sync-service/internal/store"
	"order-sync-service/internal/util"

	"go.uber.org/zap"
)

// OrderService handles order intake and status transitions
type OrderService struct {
	store       *store.Store
	syncService *SyncService
	logger      *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, syncService *SyncService) *OrderService {
	return &OrderService{
		store:       store,
		syncService: syncService,
		logger:      util.GetLogger(),
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	SKU   *string `json:"sku" validate:"omitempty,max=100"`
	Name  string  `json:"name" validate:"required,max=255"`
	Price int64   `json:"price" validate:"gte=0"`
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	OrderNumber      string             `json:"order_number" validate:"max=50"`
	BillingEmail     string             `json:"billing_email" validate:"omitempty,email,max=100"`
	BillingFirstName string             `json:"billing_first_name" validate:"max=100"`
	BillingLastName  string             `json:"billing_last_name" validate:"max=100"`
	Status           string             `json:"status" validate:"required,max=30"`
	Items            []OrderItemRequest `json:"items" validate:"dive"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

// UpdateStatusRequest represents an order status transition
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,max=30"`
}

// OrderDetails is an order with its items and latest sync attempt
type OrderDetails struct {
	Order    *models.Order     `json:"order"`
	Items    []models.LineItem `json:"items"`
	LastSync *models.SyncLog   `json:"last_sync"`
}

// CreateProduct creates a new product
func (s *OrderService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateProduct")
	defer span.End()

	product := &models.Product{SKU: req.SKU, Name: req.Name, Price: req.Price}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// CreateOrder stores a new order. Creation counts as a status change from
// no status, so an order created in a sync status is synced right away.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	products, err := s.validateOrderItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:      req.OrderNumber,
		BillingEmail:     req.BillingEmail,
		BillingFirstName: req.BillingFirstName,
		BillingLastName:  req.BillingLastName,
		Status:           NormalizeStatus(req.Status),
	}

	items := make([]models.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID := item.ProductID
		items = append(items, models.LineItem{
			ProductID: &productID,
			Quantity:  item.Quantity,
			UnitTotal: products[item.ProductID].Price,
		})
	}

	if err := s.store.CreateOrder(ctx, order, items); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created", zap.Int64("order_id", order.ID), zap.String("status", order.Status))
	s.notifyStatusChange(ctx, order.ID, "", order.Status)

	return order, nil
}

// GetOrder retrieves an order with its items and latest sync attempt
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetLineItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	latest, err := s.store.GetLatestSyncLog(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest sync log: %w", err)
	}

	return &OrderDetails{Order: order, Items: items, LastSync: latest}, nil
}

// UpdateStatus moves an order to a new status and fires the status-change
// trigger when the status actually changed.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	status = NormalizeStatus(status)
	previous, err := s.store.UpdateOrderStatus(ctx, orderID, status)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if previous != status {
		s.logger.Info("Order status changed",
			zap.Int64("order_id", orderID),
			zap.String("old_status", previous),
			zap.String("new_status", status))
		s.notifyStatusChange(ctx, orderID, previous, status)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// notifyStatusChange never fails the order operation; sync problems end up
// in the sync log and the service log only.
func (s *OrderService) notifyStatusChange(ctx context.Context, orderID int64, oldStatus, newStatus string) {
	if err := s.syncService.HandleStatusChange(ctx, orderID, oldStatus, newStatus); err != nil {
		s.logger.Error("Failed to handle status change",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}

// validateOrderItems validates that all products exist
func (s *OrderService) validateOrderItems(ctx context.Context, items []OrderItemRequest) (map[int64]*models.Product, error) {
	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	for _, item := range items {
		if _, ok := productMap[item.ProductID]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
	}

	return productMap, nil
}
