package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID         uint            `json:"-" gorm:"primaryKey"`
	UserID     string          `json:"userId" gorm:"size:64;not null;uniqueIndex:idx_customers_shop_customer"`
	CustomerID string          `json:"customerId" gorm:"size:64;not null;uniqueIndex:idx_customers_shop_customer"`
	Name       string          `json:"name" gorm:"not null"`
	Address    string          `json:"address"`
	Contact    string          `json:"contact"`
	Debit      decimal.Decimal `json:"debit" gorm:"type:decimal(20,2);not null;default:0"`
	Credit     decimal.Decimal `json:"credit" gorm:"type:decimal(20,2);not null;default:0"`
	TotalSales decimal.Decimal `json:"totalSales" gorm:"type:decimal(20,2);not null;default:0"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// BalanceDelta is a signed change to a customer's balances, applied as
// one atomic increment.
type BalanceDelta struct {
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	TotalSales decimal.Decimal
}

func (d BalanceDelta) IsZero() bool {
	return d.Debit.IsZero() && d.Credit.IsZero() && d.TotalSales.IsZero()
}

func (d BalanceDelta) Add(o BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Debit:      d.Debit.Add(o.Debit),
		Credit:     d.Credit.Add(o.Credit),
		TotalSales: d.TotalSales.Add(o.TotalSales),
	}
}

func (c *Customer) Apply(d BalanceDelta) {
	c.Debit = c.Debit.Add(d.Debit)
	c.Credit = c.Credit.Add(d.Credit)
	c.TotalSales = c.TotalSales.Add(d.TotalSales)
}
