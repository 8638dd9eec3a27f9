package repository

import (
	"context"
	"fmt"
	"shop_ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockAdjustment struct {
	UserID    string
	ProductID string
	Delta     decimal.Decimal
	// RequireAvailable rejects a decrement that would take stock below zero.
	RequireAvailable bool
}

type ProductRepository interface {
	GetByID(ctx context.Context, userID, productID string) (*models.Product, error)
	Upsert(ctx context.Context, product *models.Product) error
	AdjustStock(ctx context.Context, adj StockAdjustment) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByID(ctx context.Context, userID, productID string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&product).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *productRepository) Upsert(ctx context.Context, product *models.Product) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "quantity", "pack_value", "pack_unit", "updated_at"}),
	}).Create(product).Error
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", product.ProductID, err)
	}
	return nil
}

func (r *productRepository) AdjustStock(ctx context.Context, adj StockAdjustment) error {
	q := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("user_id = ? AND product_id = ?", adj.UserID, adj.ProductID)
	if adj.RequireAvailable && adj.Delta.IsNegative() {
		q = q.Where("quantity + ? >= 0", adj.Delta)
	}
	res := q.UpdateColumn("quantity", gorm.Expr("quantity + ?", adj.Delta))
	if res.Error != nil {
		return fmt.Errorf("failed to adjust stock of %s: %w", adj.ProductID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, adj.UserID, adj.ProductID); err != nil {
		return err
	}
	return fmt.Errorf("product %s: %w", adj.ProductID, ErrInsufficientStock)
}
