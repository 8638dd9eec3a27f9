// Package memory is an in-process implementation of the repository
// interfaces. A transaction works on a private copy of the data which
// replaces the shared state only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shop_ledger/internal/models"
	"shop_ledger/internal/repository"
)

type key struct {
	userID string
	id     string
}

type data struct {
	orders    map[string]*models.Order
	products  map[key]*models.Product
	customers map[key]*models.Customer
	nextID    uint
}

func (d *data) clone() *data {
	c := &data{
		orders:    make(map[string]*models.Order, len(d.orders)),
		products:  make(map[key]*models.Product, len(d.products)),
		customers: make(map[key]*models.Customer, len(d.customers)),
		nextID:    d.nextID,
	}
	for k, o := range d.orders {
		c.orders[k] = cloneOrder(o)
	}
	for k, p := range d.products {
		cp := *p
		c.products[k] = &cp
	}
	for k, cu := range d.customers {
		cc := *cu
		c.customers[k] = &cc
	}
	return c
}

type Store struct {
	mu     sync.Mutex
	state  *data
	faults map[string]error
}

var _ repository.UnitOfWork = (*Store)(nil)

func New() *Store {
	return &Store{
		state: &data{
			orders:    make(map[string]*models.Order),
			products:  make(map[key]*models.Product),
			customers: make(map[key]*models.Customer),
		},
		faults: make(map[string]error),
	}
}

// FailOn makes the named operation (e.g. "customers.ApplyDelta") return
// err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&tx{ctx: ctx, d: staged, faults: s.faults}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Orders() repository.OrderRepository       { return rootOrders{s} }
func (s *Store) Products() repository.ProductRepository   { return rootProducts{s} }
func (s *Store) Customers() repository.CustomerRepository { return rootCustomers{s} }

type tx struct {
	ctx    context.Context
	d      *data
	faults map[string]error
}

func (t *tx) Orders() repository.OrderRepository       { return txOrders{t} }
func (t *tx) Products() repository.ProductRepository   { return txProducts{t} }
func (t *tx) Customers() repository.CustomerRepository { return txCustomers{t} }

func (t *tx) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.faults[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append(c.Items[:0:0], o.Items...)
	if o.FreeItems != nil {
		c.FreeItems = append(c.FreeItems[:0:0], o.FreeItems...)
	}
	c.SettlementHistory = append(c.SettlementHistory[:0:0], o.SettlementHistory...)
	return &c
}

func sortOrders(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// DeleteProduct removes a product from the catalog.
func (s *Store) DeleteProduct(userID, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.products, key{userID, productID})
}
