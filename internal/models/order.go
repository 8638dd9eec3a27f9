package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrOrderDelivered = errors.New("order already delivered")

func init() {
	// Money and quantities go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// LineItem is one entry of an order's items or freeItems. ProductID is
// optional; StockApplied records whether creation decremented stock for it.
type LineItem struct {
	ProductID    string          `json:"productId,omitempty"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         UnitKind        `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	StockApplied bool            `json:"stockApplied"`
}

type QuantitySummary struct {
	Piece decimal.Decimal `json:"piece" gorm:"type:decimal(20,4);not null;default:0"`
	Box   decimal.Decimal `json:"box" gorm:"type:decimal(20,4);not null;default:0"`
	Kg    decimal.Decimal `json:"kg" gorm:"type:decimal(20,4);not null;default:0"`
	Litre decimal.Decimal `json:"litre" gorm:"type:decimal(20,4);not null;default:0"`
	Gm    decimal.Decimal `json:"gm" gorm:"type:decimal(20,4);not null;default:0"`
	Ml    decimal.Decimal `json:"ml" gorm:"type:decimal(20,4);not null;default:0"`
}

func (q *QuantitySummary) field(u UnitKind) *decimal.Decimal {
	switch u {
	case UnitPiece:
		return &q.Piece
	case UnitBox:
		return &q.Box
	case UnitKg:
		return &q.Kg
	case UnitLitre:
		return &q.Litre
	case UnitGm:
		return &q.Gm
	case UnitMl:
		return &q.Ml
	}
	return nil
}

func (q *QuantitySummary) Add(u UnitKind, qty decimal.Decimal) {
	if f := q.field(u); f != nil {
		*f = f.Add(qty)
	}
}

func (q QuantitySummary) Get(u UnitKind) decimal.Decimal {
	if f := q.field(u); f != nil {
		return *f
	}
	return decimal.Zero
}

func (q *QuantitySummary) Merge(other QuantitySummary) {
	for _, u := range UnitKinds {
		q.Add(u, other.Get(u))
	}
}

func SummarizeQuantities(lists ...[]LineItem) QuantitySummary {
	var q QuantitySummary
	for _, items := range lists {
		for _, it := range items {
			q.Add(it.Unit, it.Quantity)
		}
	}
	return q
}

type Order struct {
	ID                 uint                                 `json:"-" gorm:"primaryKey"`
	OrderID            string                               `json:"orderId" gorm:"size:64;uniqueIndex;not null"`
	SerialNumber       string                               `json:"serialNumber"`
	UserID             string                               `json:"userId" gorm:"size:64;index;not null"`
	ShopName           string                               `json:"shopName"`
	CustomerID         string                               `json:"customerId" gorm:"size:64;index"`
	CustomerName       string                               `json:"customerName"`
	CustomerAddress    string                               `json:"customerAddress"`
	CustomerContact    string                               `json:"customerContact"`
	Items              datatypes.JSONSlice[LineItem]        `json:"items" gorm:"type:jsonb;not null"`
	FreeItems          datatypes.JSONSlice[LineItem]        `json:"freeItems" gorm:"type:jsonb"`
	Subtotal           decimal.Decimal                      `json:"subtotal" gorm:"type:decimal(20,2);not null;default:0"`
	DiscountPercentage decimal.Decimal                      `json:"discountPercentage" gorm:"type:decimal(5,2);not null;default:0"`
	Total              decimal.Decimal                      `json:"total" gorm:"type:decimal(20,2);not null"`
	Remarks            string                               `json:"remarks"`
	QuantitySummary    QuantitySummary                      `json:"quantitySummary" gorm:"embedded;embeddedPrefix:qty_"`
	State              SettlementState                      `json:"settlementState" gorm:"column:settlement_state;size:16;index;not null;default:'unsettled'"`
	SettlementAmount   decimal.Decimal                      `json:"settlementAmount" gorm:"type:decimal(20,2);not null;default:0"`
	SettledAt          *time.Time                           `json:"settledAt"`
	DiscardedAt        *time.Time                           `json:"discardedAt"`
	DeliveredAt        *time.Time                           `json:"deliveredAt"`
	SettlementHistory  datatypes.JSONSlice[SettlementEntry] `json:"settlementHistory" gorm:"type:jsonb;not null"`
	Version            int                                  `json:"version" gorm:"not null;default:1"`
	CreatedAt          time.Time                            `json:"createdAt" gorm:"index"`
	UpdatedAt          time.Time                            `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	o.QuantitySummary = SummarizeQuantities(o.Items, o.FreeItems)
	if o.State == "" {
		o.State = StateUnsettled
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// Start puts a freshly built order into its initial state.
func (o *Order) Start(at time.Time, note string) {
	o.State = StateUnsettled
	o.QuantitySummary = SummarizeQuantities(o.Items, o.FreeItems)
	o.SettlementHistory = datatypes.JSONSlice[SettlementEntry]{newEntry(ActionCreated, at, note)}
	o.SettlementAmount = decimal.Zero
	o.SettledAt = nil
	o.DiscardedAt = nil
	o.Version = 1
	o.CreatedAt = at
	o.UpdatedAt = at
}

func (o *Order) IsDebt() bool      { return o.State == StateSettledDebt }
func (o *Order) IsDiscarded() bool { return o.State == StateDiscarded }

func (o *Order) IsDeliveredLocked() bool {
	return o.DeliveredAt != nil
}

// Outstanding is the part of the bill not yet paid.
func (o *Order) Outstanding() decimal.Decimal {
	if o.State == StateDiscarded {
		return decimal.Zero
	}
	rest := o.Total.Sub(o.SettlementAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// Discard moves an unsettled, undelivered order to Discarded.
func (o *Order) Discard(at time.Time, note string) error {
	if o.State != StateUnsettled {
		return &TransitionError{OrderID: o.OrderID, State: o.State, Event: "discard"}
	}
	if o.IsDeliveredLocked() {
		return ErrOrderDelivered
	}
	o.appendEntry(newEntry(ActionDiscarded, at, note))
	o.State = StateDiscarded
	o.DiscardedAt = timePtr(at)
	o.SettlementAmount = decimal.Zero
	return nil
}

// FlagDebt marks an unsettled order as settled on credit with nothing paid.
func (o *Order) FlagDebt(at time.Time, note string) error {
	if o.State != StateUnsettled {
		return &TransitionError{OrderID: o.OrderID, State: o.State, Event: "settle"}
	}
	e := newEntry(ActionSettled, at, note)
	e.Method = MethodDebt
	e.AmountPaid = decPtr(decimal.Zero)
	o.appendEntry(e)
	o.State = StateSettledDebt
	o.SettledAt = timePtr(at)
	return nil
}

// Payment is an allocated payment ready to be recorded on the order.
type Payment struct {
	Method   SettlementMethod
	Amount   decimal.Decimal
	Applied  decimal.Decimal
	Overflow decimal.Decimal
	Note     string
	At       time.Time
}

// Settle records a first payment against an unsettled order.
func (o *Order) Settle(p Payment) error {
	if o.State != StateUnsettled {
		return &TransitionError{OrderID: o.OrderID, State: o.State, Event: "settle"}
	}
	return o.recordPayment(p)
}

// SettleDebt records a further payment against a debt-flagged order.
func (o *Order) SettleDebt(p Payment) error {
	if o.State != StateSettledDebt {
		return &TransitionError{OrderID: o.OrderID, State: o.State, Event: "settleDebt"}
	}
	return o.recordPayment(p)
}

func (o *Order) recordPayment(p Payment) error {
	if !p.Method.IsPayment() {
		return &TransitionError{OrderID: o.OrderID, State: o.State, Event: "pay by " + string(p.Method)}
	}
	e := newEntry(ActionSettled, p.At, p.Note)
	e.Method = p.Method
	e.AmountPaid = decPtr(p.Amount)
	e.AppliedToDebit = decPtr(p.Applied)
	e.OverflowToCredit = decPtr(p.Overflow)
	o.appendEntry(e)

	if o.SettlementAmount.GreaterThanOrEqual(o.Total) {
		o.State = p.Method.settledState()
	} else {
		o.State = StateSettledDebt
	}
	o.SettledAt = timePtr(p.At)
	return nil
}

func (o *Order) appendEntry(e SettlementEntry) {
	o.SettlementHistory = append(o.SettlementHistory, e)
	o.SettlementAmount = PaidFromHistory(o.SettlementHistory)
	o.UpdatedAt = e.At
}

// PaidFromHistory sums amountPaid over Settled entries.
func PaidFromHistory(history []SettlementEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range history {
		sum = sum.Add(e.Paid())
	}
	return sum
}

func timePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

type orderAlias Order

type orderView struct {
	*orderAlias
	Status           Status            `json:"status"`
	SettlementMethod *SettlementMethod `json:"settlementMethod"`
	IsDebt           bool              `json:"isDebt"`
	IsDiscarded      bool              `json:"isDiscarded"`
}

// MarshalJSON adds the legacy status fields derived from State.
func (o Order) MarshalJSON() ([]byte, error) {
	v := orderView{
		orderAlias:  (*orderAlias)(&o),
		Status:      o.State.Status(),
		IsDebt:      o.IsDebt(),
		IsDiscarded: o.IsDiscarded(),
	}
	if m := o.State.Method(); m != "" {
		v.SettlementMethod = &m
	}
	return json.Marshal(v)
}
