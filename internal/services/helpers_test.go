package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"shop_ledger/internal/models"
	"shop_ledger/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

const shop = "shop-1"

var day0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// stepClock advances by one minute on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeCache struct {
	mu          sync.Mutex
	gens        map[string]int64
	data        map[string][]byte
	invalidated int
	gets        int
}

func newFakeCache() *fakeCache {
	return &fakeCache{gens: map[string]int64{}, data: map[string][]byte{}}
}

func (c *fakeCache) GetReport(_ context.Context, userID, name string, dest interface{}) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	gen := c.gens[userID]
	raw, ok := c.data[fmt.Sprintf("%s:%d:%s", userID, gen, name)]
	if !ok {
		return gen, false, nil
	}
	return gen, true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) SetReport(_ context.Context, userID string, gen int64, name string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[fmt.Sprintf("%s:%d:%s", userID, gen, name)] = raw
	return nil
}

func (c *fakeCache) InvalidateShop(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID]++
	c.invalidated++
	return nil
}

type notification struct {
	orderID string
	event   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) OrderUpdated(_ context.Context, order *models.Order, event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{orderID: order.OrderID, event: event})
}

func (n *recordingNotifier) events() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type fixture struct {
	t        *testing.T
	store    *memory.Store
	clock    *stepClock
	cache    *fakeCache
	notifier *recordingNotifier
	orders   OrderService
	ledger   LedgerService
}

func newFixture(t *testing.T, opts OrderServiceOptions) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		store:    memory.New(),
		clock:    &stepClock{now: day0},
		cache:    newFakeCache(),
		notifier: &recordingNotifier{},
	}
	opts.Clock = f.clock.Now
	f.orders = NewOrderService(f.store, NewAuthorizationPolicy(""), f.cache, f.notifier, opts)
	f.ledger = NewLedgerService(f.store, f.cache, f.clock.Now)

	f.addProduct("p-rice", "10")
	f.addProduct("p-oil", "5")
	return f
}

func (f *fixture) addProduct(id, qty string) {
	f.t.Helper()
	require.NoError(f.t, f.store.Products().Upsert(context.Background(), &models.Product{
		UserID: shop, ProductID: id, Name: id, Quantity: dec(qty),
	}))
}

func (f *fixture) stock(id string) string {
	f.t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), shop, id)
	require.NoError(f.t, err)
	return p.Quantity.String()
}

func (f *fixture) customer(id string) *models.Customer {
	f.t.Helper()
	c, err := f.store.Customers().GetByID(context.Background(), shop, id)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) order(id string) *models.Order {
	f.t.Helper()
	o, err := f.store.Orders().GetByOrderID(context.Background(), id)
	require.NoError(f.t, err)
	return o
}

func (f *fixture) create(orderID, customerID, total string) *models.Order {
	f.t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), orderInput(orderID, customerID, total))
	require.NoError(f.t, err)
	return o
}

func (f *fixture) act(action, orderID, method string, amount string) (*models.Order, error) {
	in := ActionInput{Action: action, OrderID: orderID, UserID: shop, Method: method}
	if amount != "" {
		a := dec(amount)
		in.Amount = &a
	}
	return f.orders.ApplyAction(context.Background(), in)
}

func orderInput(orderID, customerID, total string) CreateOrderInput {
	return CreateOrderInput{
		UserID:          shop,
		OrderID:         orderID,
		SerialNumber:    "S-" + orderID,
		ShopName:        "Corner Store",
		CustomerID:      customerID,
		CustomerName:    "Asha",
		CustomerAddress: "12 Market Road",
		CustomerContact: "9876543210",
		Items: []ItemInput{
			{ProductID: "p-rice", Name: "Rice", Quantity: dec("2"), Unit: "kg", Price: dec("300")},
			{ProductID: "p-oil", Name: "Oil", Quantity: dec("1"), Unit: "ltr", Price: dec("400")},
			{Name: "Bag", Quantity: dec("1"), Unit: "pcs", Price: dec("0")},
		},
		FreeItems: []ItemInput{
			{ProductID: "p-oil", Name: "Oil sample", Quantity: dec("1"), Unit: "litre", Price: dec("99")},
		},
		Subtotal: dec(total),
		Total:    dec(total),
	}
}

func requireHistoryConsistent(t *testing.T, o *models.Order) {
	t.Helper()
	require.NotEmpty(t, o.SettlementHistory)
	require.Equal(t, models.ActionCreated, o.SettlementHistory[0].Action)
	require.True(t, o.SettlementAmount.Equal(models.PaidFromHistory(o.SettlementHistory)),
		"settlementAmount %s does not match history", o.SettlementAmount)
}
