package memory

import (
	"context"
	"fmt"
	"time"

	"shop_ledger/internal/models"
	"shop_ledger/internal/repository"
)

type txOrders struct{ t *tx }

func (r txOrders) Create(ctx context.Context, order *models.Order) error {
	if err := r.t.check(ctx, "orders.Create"); err != nil {
		return err
	}
	if _, ok := r.t.d.orders[order.OrderID]; ok {
		return fmt.Errorf("order %s: %w", order.OrderID, repository.ErrDuplicateKey)
	}
	now := time.Now().UTC()
	r.t.d.nextID++
	order.ID = r.t.d.nextID
	order.QuantitySummary = models.SummarizeQuantities(order.Items, order.FreeItems)
	if order.State == "" {
		order.State = models.StateUnsettled
	}
	if order.Version == 0 {
		order.Version = 1
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	r.t.d.orders[order.OrderID] = cloneOrder(order)
	return nil
}

func (r txOrders) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	if err := r.t.check(ctx, "orders.GetByOrderID"); err != nil {
		return nil, err
	}
	o, ok := r.t.d.orders[orderID]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return cloneOrder(o), nil
}

func (r txOrders) List(ctx context.Context, userID string, filter repository.OrderFilter) ([]models.Order, error) {
	if err := r.t.check(ctx, "orders.List"); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range r.t.d.orders {
		if o.UserID != userID {
			continue
		}
		if filter.Status != "" && o.State.Status() != filter.Status {
			continue
		}
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.CreatedFrom != nil && o.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && !o.CreatedAt.Before(*filter.CreatedTo) {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sortOrders(out)
	return out, nil
}

func (r txOrders) UpdateSettlement(ctx context.Context, order *models.Order, expectedVersion int) error {
	if err := r.t.check(ctx, "orders.UpdateSettlement"); err != nil {
		return err
	}
	stored, ok := r.t.d.orders[order.OrderID]
	if !ok || stored.Version != expectedVersion {
		return fmt.Errorf("order %s at version %d: %w", order.OrderID, expectedVersion, repository.ErrVersionConflict)
	}
	next := cloneOrder(stored)
	next.State = order.State
	next.SettlementAmount = order.SettlementAmount
	next.SettledAt = order.SettledAt
	next.DiscardedAt = order.DiscardedAt
	next.SettlementHistory = append(next.SettlementHistory[:0:0], order.SettlementHistory...)
	next.UpdatedAt = order.UpdatedAt
	next.Version = expectedVersion + 1
	r.t.d.orders[order.OrderID] = next
	order.Version = next.Version
	return nil
}

type txProducts struct{ t *tx }

func (r txProducts) GetByID(ctx context.Context, userID, productID string) (*models.Product, error) {
	if err := r.t.check(ctx, "products.GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.t.d.products[key{userID, productID}]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r txProducts) Upsert(ctx context.Context, product *models.Product) error {
	if err := r.t.check(ctx, "products.Upsert"); err != nil {
		return err
	}
	k := key{product.UserID, product.ProductID}
	now := time.Now().UTC()
	if existing, ok := r.t.d.products[k]; ok {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
	} else {
		r.t.d.nextID++
		product.ID = r.t.d.nextID
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	cp := *product
	r.t.d.products[k] = &cp
	return nil
}

func (r txProducts) AdjustStock(ctx context.Context, adj repository.StockAdjustment) error {
	if err := r.t.check(ctx, "products.AdjustStock"); err != nil {
		return err
	}
	p, ok := r.t.d.products[key{adj.UserID, adj.ProductID}]
	if !ok {
		return repository.ErrRecordNotFound
	}
	next := p.Quantity.Add(adj.Delta)
	if adj.RequireAvailable && adj.Delta.IsNegative() && next.IsNegative() {
		return fmt.Errorf("product %s: %w", adj.ProductID, repository.ErrInsufficientStock)
	}
	p.Quantity = next
	return nil
}

type txCustomers struct{ t *tx }

func (r txCustomers) GetByID(ctx context.Context, userID, customerID string) (*models.Customer, error) {
	if err := r.t.check(ctx, "customers.GetByID"); err != nil {
		return nil, err
	}
	c, ok := r.t.d.customers[key{userID, customerID}]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r txCustomers) Ensure(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := r.t.check(ctx, "customers.Ensure"); err != nil {
		return nil, err
	}
	k := key{customer.UserID, customer.CustomerID}
	if _, ok := r.t.d.customers[k]; !ok {
		now := time.Now().UTC()
		r.t.d.nextID++
		cp := *customer
		cp.ID = r.t.d.nextID
		cp.CreatedAt = now
		cp.UpdatedAt = now
		r.t.d.customers[k] = &cp
	}
	return r.GetByID(ctx, customer.UserID, customer.CustomerID)
}

func (r txCustomers) ApplyDelta(ctx context.Context, userID, customerID string, delta models.BalanceDelta) error {
	if err := r.t.check(ctx, "customers.ApplyDelta"); err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	c, ok := r.t.d.customers[key{userID, customerID}]
	if !ok {
		return fmt.Errorf("customer %s: %w", customerID, repository.ErrRecordNotFound)
	}
	c.Apply(delta)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Root repositories run every call in its own transaction.

type rootOrders struct{ s *Store }

func (r rootOrders) Create(ctx context.Context, order *models.Order) error {
	return r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Orders().Create(ctx, order)
	})
}

func (r rootOrders) GetByOrderID(ctx context.Context, orderID string) (order *models.Order, err error) {
	err = r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		order, err = repos.Orders().GetByOrderID(ctx, orderID)
		return err
	})
	return order, err
}

func (r rootOrders) List(ctx context.Context, userID string, filter repository.OrderFilter) (orders []models.Order, err error) {
	err = r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		orders, err = repos.Orders().List(ctx, userID, filter)
		return err
	})
	return orders, err
}

func (r rootOrders) UpdateSettlement(ctx context.Context, order *models.Order, expectedVersion int) error {
	return r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Orders().UpdateSettlement(ctx, order, expectedVersion)
	})
}

type rootProducts struct{ s *Store }

func (r rootProducts) GetByID(ctx context.Context, userID, productID string) (p *models.Product, err error) {
	err = r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		p, err = repos.Products().GetByID(ctx, userID, productID)
		return err
	})
	return p, err
}

func (r rootProducts) Upsert(ctx context.Context, product *models.Product) error {
	return r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Products().Upsert(ctx, product)
	})
}

func (r rootProducts) AdjustStock(ctx context.Context, adj repository.StockAdjustment) error {
	return r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Products().AdjustStock(ctx, adj)
	})
}

type rootCustomers struct{ s *Store }

func (r rootCustomers) GetByID(ctx context.Context, userID, customerID string) (c *models.Customer, err error) {
	err = r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		c, err = repos.Customers().GetByID(ctx, userID, customerID)
		return err
	})
	return c, err
}

func (r rootCustomers) Ensure(ctx context.Context, customer *models.Customer) (c *models.Customer, err error) {
	err = r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		c, err = repos.Customers().Ensure(ctx, customer)
		return err
	})
	return c, err
}

func (r rootCustomers) ApplyDelta(ctx context.Context, userID, customerID string, delta models.BalanceDelta) error {
	return r.s.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Customers().ApplyDelta(ctx, userID, customerID, delta)
	})
}
