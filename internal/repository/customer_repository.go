package repository

import (
	"context"
	"fmt"
	"shop_ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	GetByID(ctx context.Context, userID, customerID string) (*models.Customer, error)
	// Ensure creates the customer if it does not exist yet and returns the
	// stored row. Existing balances are never touched.
	Ensure(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	ApplyDelta(ctx context.Context, userID, customerID string, delta models.BalanceDelta) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetByID(ctx context.Context, userID, customerID string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND customer_id = ?", userID, customerID).
		First(&customer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (r *customerRepository) Ensure(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(customer).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create customer %s: %w", customer.CustomerID, err)
	}
	return r.GetByID(ctx, customer.UserID, customer.CustomerID)
}

func (r *customerRepository) ApplyDelta(ctx context.Context, userID, customerID string, delta models.BalanceDelta) error {
	if delta.IsZero() {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("user_id = ? AND customer_id = ?", userID, customerID).
		UpdateColumns(map[string]interface{}{
			"debit":       gorm.Expr("debit + ?", delta.Debit),
			"credit":      gorm.Expr("credit + ?", delta.Credit),
			"total_sales": gorm.Expr("total_sales + ?", delta.TotalSales),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update balance of customer %s: %w", customerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("customer %s: %w", customerID, ErrRecordNotFound)
	}
	return nil
}
