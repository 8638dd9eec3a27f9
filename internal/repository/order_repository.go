package repository

import (
	"context"
	"fmt"
	"shop_ledger/internal/models"
	"time"

	"gorm.io/gorm"
)

type OrderFilter struct {
	Status      models.Status
	CustomerID  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, userID string, filter OrderFilter) ([]models.Order, error)
	// UpdateSettlement writes the settlement fields of order only if the
	// stored version still equals expectedVersion, then bumps the version.
	UpdateSettlement(ctx context.Context, order *models.Order, expectedVersion int) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s: %w", order.OrderID, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, userID string, filter OrderFilter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	switch filter.Status {
	case models.StatusUnsettled:
		q = q.Where("settlement_state = ?", models.StateUnsettled)
	case models.StatusSettled:
		q = q.Where("settlement_state <> ?", models.StateUnsettled)
	}
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at < ?", *filter.CreatedTo)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateSettlement(ctx context.Context, order *models.Order, expectedVersion int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ? AND version = ?", order.OrderID, expectedVersion).
		UpdateColumns(map[string]interface{}{
			"settlement_state":   order.State,
			"settlement_amount":  order.SettlementAmount,
			"settled_at":         order.SettledAt,
			"discarded_at":       order.DiscardedAt,
			"settlement_history": order.SettlementHistory,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         order.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", order.OrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s at version %d: %w", order.OrderID, expectedVersion, ErrVersionConflict)
	}
	order.Version = expectedVersion + 1
	return nil
}
