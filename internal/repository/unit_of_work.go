package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the repositories that share one database handle,
// either the root connection or an open transaction.
type Repositories interface {
	Orders() OrderRepository
	Products() ProductRepository
	Customers() CustomerRepository
}

// UnitOfWork runs fn inside a single transaction. Any error returned by fn
// rolls back every write made through the Repositories it was given.
type UnitOfWork interface {
	Repositories
	WithinTx(ctx context.Context, fn func(Repositories) error) error
	Ping(ctx context.Context) error
}

type gormRepositories struct {
	orders    OrderRepository
	products  ProductRepository
	customers CustomerRepository
}

func newGormRepositories(db *gorm.DB) gormRepositories {
	return gormRepositories{
		orders:    NewOrderRepository(db),
		products:  NewProductRepository(db),
		customers: NewCustomerRepository(db),
	}
}

func (r gormRepositories) Orders() OrderRepository       { return r.orders }
func (r gormRepositories) Products() ProductRepository   { return r.products }
func (r gormRepositories) Customers() CustomerRepository { return r.customers }

type gormUnitOfWork struct {
	gormRepositories
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{gormRepositories: newGormRepositories(db), db: db}
}

func (u *gormUnitOfWork) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGormRepositories(tx))
	})
}

func (u *gormUnitOfWork) Ping(ctx context.Context) error {
	sqlDB, err := u.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
