package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"shop_ledger/internal/models"
	"shop_ledger/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	ActionDiscard    = "discard"
	ActionSettle     = "settle"
	ActionSettleDebt = "settleDebt"
)

var hundred = decimal.NewFromInt(100)

// Decimal places kept by the money and quantity columns.
const (
	moneyPlaces    = 2
	quantityPlaces = 4
)

func tooPrecise(d decimal.Decimal, places int32) bool {
	return !d.Truncate(places).Equal(d)
}

type ItemInput struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
}

type CreateOrderInput struct {
	UserID             string          `json:"userId"`
	OrderID            string          `json:"orderId"`
	SerialNumber       string          `json:"serialNumber"`
	ShopName           string          `json:"shopName"`
	CustomerID         string          `json:"customerId"`
	CustomerName       string          `json:"customerName"`
	CustomerAddress    string          `json:"customerAddress"`
	CustomerContact    string          `json:"customerContact"`
	Items              []ItemInput     `json:"items"`
	FreeItems          []ItemInput     `json:"freeItems"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Total              decimal.Decimal `json:"total"`
	Remarks            string          `json:"remarks"`
}

type ActionInput struct {
	Action   string           `json:"action"`
	OrderID  string           `json:"orderId"`
	UserID   string           `json:"userId"`
	Method   string           `json:"method"`
	Amount   *decimal.Decimal `json:"amount"`
	Note     string           `json:"note"`
	AdminKey string           `json:"-"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, caller Caller, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID, status string) ([]models.Order, error)
	ApplyAction(ctx context.Context, in ActionInput) (*models.Order, error)

	Discard(ctx context.Context, caller Caller, orderID, note string) (*models.Order, error)
	Settle(ctx context.Context, caller Caller, orderID string, method models.SettlementMethod, amount *decimal.Decimal, note string) (*models.Order, error)
	SettleDebt(ctx context.Context, caller Caller, orderID string, method models.SettlementMethod, amount *decimal.Decimal, note string) (*models.Order, error)
}

type OrderServiceOptions struct {
	// StrictStock rejects orders that would take a product below zero.
	StrictStock bool
	Clock       func() time.Time
}

type orderService struct {
	uow      repository.UnitOfWork
	policy   AuthorizationPolicy
	cache    ReportCache
	notifier Notifier
	opts     OrderServiceOptions
}

func NewOrderService(uow repository.UnitOfWork, policy AuthorizationPolicy, cache ReportCache, notifier Notifier, opts OrderServiceOptions) OrderService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if notifier == nil {
		notifier = NewNopNotifier()
	}
	return &orderService{uow: uow, policy: policy, cache: cache, notifier: notifier, opts: opts}
}

func (s *orderService) now() time.Time {
	return s.opts.Clock().UTC()
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	order, err := buildOrder(in)
	if err != nil {
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Orders().GetByOrderID(ctx, order.OrderID); err == nil {
			return fmt.Errorf("%w: order %s already exists", ErrConflict, order.OrderID)
		} else if !errors.Is(err, repository.ErrRecordNotFound) {
			return err
		}

		if _, err := r.Customers().Ensure(ctx, &models.Customer{
			UserID:     order.UserID,
			CustomerID: order.CustomerID,
			Name:       order.CustomerName,
			Address:    order.CustomerAddress,
			Contact:    order.CustomerContact,
		}); err != nil {
			return err
		}

		if err := s.takeStock(ctx, r.Products(), order.UserID, order.Items); err != nil {
			return err
		}
		if err := s.takeStock(ctx, r.Products(), order.UserID, order.FreeItems); err != nil {
			return err
		}

		order.Start(s.now(), "")
		if err := r.Orders().Create(ctx, order); err != nil {
			return err
		}
		return r.Customers().ApplyDelta(ctx, order.UserID, order.CustomerID, models.BalanceDelta{
			Debit:      order.Total,
			TotalSales: order.Total,
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	s.afterCommit(ctx, order, "create")
	return order, nil
}

// takeStock decrements stock for every item that names a known product and
// has a positive quantity, marking those items as applied.
func (s *orderService) takeStock(ctx context.Context, products repository.ProductRepository, userID string, items []models.LineItem) error {
	for i := range items {
		it := &items[i]
		if it.ProductID == "" || !it.Quantity.IsPositive() {
			continue
		}
		err := products.AdjustStock(ctx, repository.StockAdjustment{
			UserID:           userID,
			ProductID:        it.ProductID,
			Delta:            it.Quantity.Neg(),
			RequireAvailable: s.opts.StrictStock,
		})
		if errors.Is(err, repository.ErrRecordNotFound) {
			log.Printf("Product %s not found for shop %s, stock not tracked for %q", it.ProductID, userID, it.Name)
			continue
		}
		if err != nil {
			return err
		}
		it.StockApplied = true
	}
	return nil
}

// returnStock reverses takeStock using only what the order recorded.
func returnStock(ctx context.Context, products repository.ProductRepository, userID string, items []models.LineItem) error {
	for _, it := range items {
		if !it.StockApplied {
			continue
		}
		err := products.AdjustStock(ctx, repository.StockAdjustment{
			UserID:    userID,
			ProductID: it.ProductID,
			Delta:     it.Quantity,
		})
		if errors.Is(err, repository.ErrRecordNotFound) {
			log.Printf("Product %s no longer exists for shop %s, skipping restock", it.ProductID, userID)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, caller Caller, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, invalid("orderId", "is required")
	}
	order, err := s.uow.Orders().GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.policy.Authorize(caller, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID, status string) ([]models.Order, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	var filter repository.OrderFilter
	if status != "" {
		st, err := models.ParseStatus(status)
		if err != nil {
			return nil, invalid("status", "must be unsettled or settled")
		}
		filter.Status = st
	}
	orders, err := s.uow.Orders().List(ctx, userID, filter)
	if err != nil {
		return nil, classify(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *orderService) ApplyAction(ctx context.Context, in ActionInput) (*models.Order, error) {
	if in.OrderID == "" {
		return nil, invalid("orderId", "is required")
	}
	if in.UserID == "" {
		return nil, invalid("userId", "is required")
	}
	caller := Caller{UserID: in.UserID, AdminKey: in.AdminKey}

	switch in.Action {
	case ActionDiscard:
		return s.Discard(ctx, caller, in.OrderID, in.Note)
	case ActionSettle, ActionSettleDebt:
		if in.Method == "" {
			return nil, invalid("method", "is required")
		}
		method, err := models.ParseMethod(in.Method)
		if err != nil {
			return nil, invalid("method", "must be one of Cash, Bank/UPI, Debt")
		}
		if in.Action == ActionSettle {
			return s.Settle(ctx, caller, in.OrderID, method, in.Amount, in.Note)
		}
		return s.SettleDebt(ctx, caller, in.OrderID, method, in.Amount, in.Note)
	}
	return nil, invalid("action", "must be one of discard, settle, settleDebt")
}

func (s *orderService) Discard(ctx context.Context, caller Caller, orderID, note string) (*models.Order, error) {
	return s.transition(ctx, caller, orderID, ActionDiscard, func(r repository.Repositories, o *models.Order, now time.Time) error {
		if err := o.Discard(now, note); err != nil {
			return err
		}
		if err := returnStock(ctx, r.Products(), o.UserID, o.Items); err != nil {
			return err
		}
		if err := returnStock(ctx, r.Products(), o.UserID, o.FreeItems); err != nil {
			return err
		}
		return r.Customers().ApplyDelta(ctx, o.UserID, o.CustomerID, models.BalanceDelta{
			Debit:      o.Total.Neg(),
			TotalSales: o.Total.Neg(),
		})
	})
}

func (s *orderService) Settle(ctx context.Context, caller Caller, orderID string, method models.SettlementMethod, amount *decimal.Decimal, note string) (*models.Order, error) {
	if method == models.MethodDebt {
		if amount != nil && !amount.IsZero() {
			return nil, invalid("amount", "must be empty when settling as Debt")
		}
		return s.transition(ctx, caller, orderID, ActionSettle, func(_ repository.Repositories, o *models.Order, now time.Time) error {
			return o.FlagDebt(now, note)
		})
	}
	pay, err := paymentAmount(method, amount)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, orderID, ActionSettle, func(r repository.Repositories, o *models.Order, now time.Time) error {
		return s.pay(ctx, r, o, method, pay, note, now, o.Settle)
	})
}

func (s *orderService) SettleDebt(ctx context.Context, caller Caller, orderID string, method models.SettlementMethod, amount *decimal.Decimal, note string) (*models.Order, error) {
	if method == models.MethodDebt {
		return nil, invalid("method", "debt can only be paid by Cash or Bank/UPI")
	}
	pay, err := paymentAmount(method, amount)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, orderID, ActionSettleDebt, func(r repository.Repositories, o *models.Order, now time.Time) error {
		return s.pay(ctx, r, o, method, pay, note, now, o.SettleDebt)
	})
}

func paymentAmount(method models.SettlementMethod, amount *decimal.Decimal) (decimal.Decimal, error) {
	if !method.IsPayment() {
		return decimal.Zero, invalid("method", "must be one of Cash, Bank/UPI, Debt")
	}
	if amount == nil {
		return decimal.Zero, invalid("amount", "is required for %s", method)
	}
	if !amount.IsPositive() {
		return decimal.Zero, invalid("amount", "must be greater than zero")
	}
	if tooPrecise(*amount, moneyPlaces) {
		return decimal.Zero, invalid("amount", "must have at most %d decimal places", moneyPlaces)
	}
	return *amount, nil
}

// pay allocates amount against the customer's balance and records it on
// the order through record, which enforces the state guard.
func (s *orderService) pay(ctx context.Context, r repository.Repositories, o *models.Order, method models.SettlementMethod,
	amount decimal.Decimal, note string, now time.Time, record func(models.Payment) error) error {
	customer, err := r.Customers().GetByID(ctx, o.UserID, o.CustomerID)
	if err != nil {
		return fmt.Errorf("customer %s: %w", o.CustomerID, err)
	}
	alloc := AllocatePayment(amount, o.Total, o.SettlementAmount, customer.Debit)
	if err := record(models.Payment{
		Method:   method,
		Amount:   amount,
		Applied:  alloc.Applied,
		Overflow: alloc.Overflow,
		Note:     note,
		At:       now,
	}); err != nil {
		return err
	}
	return r.Customers().ApplyDelta(ctx, o.UserID, o.CustomerID, alloc.Delta())
}

// transition loads the order, authorizes the caller, lets apply mutate the
// order and its ledgers, then writes the order back conditioned on the
// version that was read. All of it commits or none of it does.
func (s *orderService) transition(ctx context.Context, caller Caller, orderID, event string,
	apply func(r repository.Repositories, o *models.Order, now time.Time) error) (*models.Order, error) {
	if orderID == "" {
		return nil, invalid("orderId", "is required")
	}
	var updated *models.Order
	err := s.uow.WithinTx(ctx, func(r repository.Repositories) error {
		o, err := r.Orders().GetByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if err := s.policy.Authorize(caller, o); err != nil {
			return err
		}
		version := o.Version
		if err := apply(r, o, s.now()); err != nil {
			return err
		}
		if err := r.Orders().UpdateSettlement(ctx, o, version); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	s.afterCommit(ctx, updated, event)
	return updated, nil
}

func (s *orderService) afterCommit(ctx context.Context, order *models.Order, event string) {
	if s.cache != nil {
		if err := s.cache.InvalidateShop(ctx, order.UserID); err != nil {
			log.Printf("Failed to invalidate report cache for shop %s: %v", order.UserID, err)
		}
	}
	if event != "create" {
		s.notifier.OrderUpdated(ctx, order, event)
	}
}

func buildOrder(in CreateOrderInput) (*models.Order, error) {
	required := []struct{ field, value string }{
		{"userId", in.UserID},
		{"orderId", in.OrderID},
		{"customerId", in.CustomerID},
		{"customerName", in.CustomerName},
		{"customerAddress", in.CustomerAddress},
		{"customerContact", in.CustomerContact},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, invalid(r.field, "is required")
		}
	}
	if len(in.Items) == 0 {
		return nil, invalid("items", "must not be empty")
	}
	if in.Total.IsNegative() {
		return nil, invalid("total", "must not be negative")
	}
	if in.Subtotal.IsNegative() {
		return nil, invalid("subtotal", "must not be negative")
	}
	if in.DiscountPercentage.IsNegative() || in.DiscountPercentage.GreaterThan(hundred) {
		return nil, invalid("discountPercentage", "must be between 0 and 100")
	}
	money := []struct {
		field string
		value decimal.Decimal
	}{
		{"total", in.Total},
		{"subtotal", in.Subtotal},
		{"discountPercentage", in.DiscountPercentage},
	}
	for _, m := range money {
		if tooPrecise(m.value, moneyPlaces) {
			return nil, invalid(m.field, "must have at most %d decimal places", moneyPlaces)
		}
	}

	items, err := buildItems("items", in.Items, false)
	if err != nil {
		return nil, err
	}
	free, err := buildItems("freeItems", in.FreeItems, true)
	if err != nil {
		return nil, err
	}

	return &models.Order{
		OrderID:            strings.TrimSpace(in.OrderID),
		SerialNumber:       in.SerialNumber,
		UserID:             strings.TrimSpace(in.UserID),
		ShopName:           in.ShopName,
		CustomerID:         strings.TrimSpace(in.CustomerID),
		CustomerName:       in.CustomerName,
		CustomerAddress:    in.CustomerAddress,
		CustomerContact:    in.CustomerContact,
		Items:              items,
		FreeItems:          free,
		Subtotal:           in.Subtotal,
		DiscountPercentage: in.DiscountPercentage,
		Total:              in.Total,
		Remarks:            in.Remarks,
	}, nil
}

func buildItems(field string, in []ItemInput, free bool) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(in))
	for i, it := range in {
		name := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(it.Name) == "" {
			return nil, invalid(name+".name", "is required")
		}
		if it.Quantity.IsNegative() {
			return nil, invalid(name+".quantity", "must not be negative")
		}
		if tooPrecise(it.Quantity, quantityPlaces) {
			return nil, invalid(name+".quantity", "must have at most %d decimal places", quantityPlaces)
		}
		unit, ok := models.ParseUnitKind(it.Unit)
		if !ok {
			return nil, invalid(name+".unit", "unknown unit %q", it.Unit)
		}
		price := it.Price
		if free {
			price = decimal.Zero
		} else if price.IsNegative() {
			return nil, invalid(name+".price", "must not be negative")
		} else if tooPrecise(price, moneyPlaces) {
			return nil, invalid(name+".price", "must have at most %d decimal places", moneyPlaces)
		}
		items = append(items, models.LineItem{
			ProductID: strings.TrimSpace(it.ProductID),
			Name:      it.Name,
			Quantity:  it.Quantity,
			Unit:      unit,
			Price:     price,
		})
	}
	return items, nil
}
