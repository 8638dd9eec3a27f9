package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementState is the single source of truth for where an order is in
// its lifecycle. The legacy status/method/isDebt/isDiscarded fields are
// derived from it when an order is serialised.
type SettlementState string

const (
	StateUnsettled   SettlementState = "unsettled"
	StateSettledCash SettlementState = "settled_cash"
	StateSettledBank SettlementState = "settled_bank"
	StateSettledDebt SettlementState = "settled_debt"
	StateDiscarded   SettlementState = "discarded"
)

func (s SettlementState) Valid() bool {
	switch s {
	case StateUnsettled, StateSettledCash, StateSettledBank, StateSettledDebt, StateDiscarded:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s SettlementState) Terminal() bool {
	return s == StateSettledCash || s == StateSettledBank || s == StateDiscarded
}

// Status is the coarse filter used by list-orders.
type Status string

const (
	StatusUnsettled Status = "unsettled"
	StatusSettled   Status = "settled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusUnsettled:
		return StatusUnsettled, nil
	case StatusSettled:
		return StatusSettled, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s SettlementState) Status() Status {
	if s == StateUnsettled {
		return StatusUnsettled
	}
	return StatusSettled
}

type SettlementMethod string

const (
	MethodCash      SettlementMethod = "Cash"
	MethodBank      SettlementMethod = "Bank/UPI"
	MethodDebt      SettlementMethod = "Debt"
	MethodDiscarded SettlementMethod = "Discarded" // projection only
)

// ParseMethod accepts the method names callers send for settle actions.
func ParseMethod(s string) (SettlementMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return MethodCash, nil
	case "bank", "upi", "bank/upi":
		return MethodBank, nil
	case "debt":
		return MethodDebt, nil
	}
	return "", fmt.Errorf("unknown settlement method %q", s)
}

// IsPayment reports whether money changes hands with this method.
func (m SettlementMethod) IsPayment() bool {
	return m == MethodCash || m == MethodBank
}

func (m SettlementMethod) settledState() SettlementState {
	if m == MethodBank {
		return StateSettledBank
	}
	return StateSettledCash
}

// Method is the legacy settlementMethod value, or "" for an unsettled order.
func (s SettlementState) Method() SettlementMethod {
	switch s {
	case StateSettledCash:
		return MethodCash
	case StateSettledBank:
		return MethodBank
	case StateSettledDebt:
		return MethodDebt
	case StateDiscarded:
		return MethodDiscarded
	}
	return ""
}

type HistoryAction string

const (
	ActionCreated   HistoryAction = "Created"
	ActionSettled   HistoryAction = "Settled"
	ActionDiscarded HistoryAction = "Discarded"
)

// SettlementEntry is one immutable row of an order's audit trail.
type SettlementEntry struct {
	ID               uuid.UUID        `json:"id"`
	Action           HistoryAction    `json:"action"`
	Method           SettlementMethod `json:"method,omitempty"`
	AmountPaid       *decimal.Decimal `json:"amountPaid,omitempty"`
	AppliedToDebit   *decimal.Decimal `json:"appliedToDebit,omitempty"`
	OverflowToCredit *decimal.Decimal `json:"overflowToCredit,omitempty"`
	Note             string           `json:"note,omitempty"`
	At               time.Time        `json:"at"`
}

func (e SettlementEntry) Paid() decimal.Decimal {
	if e.Action != ActionSettled || e.AmountPaid == nil {
		return decimal.Zero
	}
	return *e.AmountPaid
}

func newEntry(action HistoryAction, at time.Time, note string) SettlementEntry {
	return SettlementEntry{ID: uuid.New(), Action: action, Note: note, At: at.UTC()}
}

func decPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// TransitionError is returned when an event is not allowed from the
// order's current state.
type TransitionError struct {
	OrderID string
	State   SettlementState
	Event   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot %s from state %s", e.OrderID, e.Event, e.State)
}
