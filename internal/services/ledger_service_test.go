package services

import (
	"context"
	"testing"
	"time"

	"shop_ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC)

	rng, err := ParseDateRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", rng.From.Format(dateLayout))
	assert.Equal(t, "2024-05-31", rng.To.Format(dateLayout))
	assert.Len(t, rng.Days(), 30)

	rng, err = ParseDateRange("2024-05-10", "2024-05-10", now)
	require.NoError(t, err)
	assert.True(t, rng.Contains(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, rng.Contains(time.Date(2024, 5, 10, 23, 59, 59, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2024, 5, 9, 23, 59, 59, 0, time.UTC)))

	_, err = ParseDateRange("2024-05-11", "2024-05-10", now)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseDateRange("10/05/2024", "", now)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseDateRange("", "tomorrow", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseDateRangeLimitsWidth(t *testing.T) {
	now := time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC)

	rng, err := ParseDateRange("2024-01-01", "2024-12-31", now)
	require.NoError(t, err)
	assert.Len(t, rng.Days(), 366)

	_, err = ParseDateRange("2023-12-31", "2024-12-31", now)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "from", ve.Field)

	_, err = ParseDateRange("0001-01-01", "9999-12-31", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCustomerLedger(t *testing.T) {
	f := newFixture(t, OrderServiceOptions{})

	f.clock.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	f.create("o-1", "C", "1000")
	f.create("o-2", "C", "300")
	f.create("o-other", "D", "999")

	f.clock.Set(time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))
	_, err := f.act(ActionSettle, "o-1", "Cash", "600")
	require.NoError(t, err)
	_, err = f.act(ActionDiscard, "o-2", "", "")
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC))
	f.create("o-3", "C", "200")
	_, err = f.act(ActionSettle, "o-3", "Debt", "")
	require.NoError(t, err)

	ledger, err := f.ledger.CustomerLedger(context.Background(), shop, "C", "2024-05-01", "2024-05-03")
	require.NoError(t, err)

	type row struct {
		typ     LedgerEntryType
		orderID string
		debit   string
		credit  string
		balance string
	}
	var got []row
	for _, e := range ledger.Entries {
		got = append(got, row{e.Type, e.OrderID, e.Debit.String(), e.Credit.String(), e.Balance.String()})
	}
	assert.Equal(t, []row{
		{EntrySale, "o-1", "1000", "0", "1000"},
		{EntrySale, "o-2", "300", "0", "1300"},
		{EntryPayment, "o-1", "0", "600", "700"},
		{EntryAdjustment, "o-2", "0", "300", "400"},
		{EntrySale, "o-3", "200", "0", "600"},
		{EntryAdjustment, "o-3", "0", "0", "600"},
	}, got)

	assert.Equal(t, "1500", ledger.Totals.Debit.String())
	assert.Equal(t, "900", ledger.Totals.Credit.String())
	assert.Equal(t, "600", ledger.Totals.Balance.String())
	assert.Equal(t, 3, ledger.Totals.Sales)
	assert.Equal(t, "600", ledger.Customer.Debit.String(), "customer balances are reported as stored")

	// The window excludes the first day.
	ledger, err = f.ledger.CustomerLedger(context.Background(), shop, "C", "2024-05-02", "2024-05-02")
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 2)
	assert.Equal(t, EntryPayment, ledger.Entries[0].Type)
	assert.Equal(t, models.MethodCash, ledger.Entries[0].Method)
}

func TestCustomerLedgerErrors(t *testing.T) {
	f := newFixture(t, OrderServiceOptions{})

	_, err := f.ledger.CustomerLedger(context.Background(), shop, "nobody", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.CustomerLedger(context.Background(), shop, "", "", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.ledger.CustomerLedger(context.Background(), "", "C", "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCustomerLedgerIsCachedUntilOrderChanges(t *testing.T) {
	f := newFixture(t, OrderServiceOptions{})
	f.clock.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	f.create("o-1", "C", "1000")

	first, err := f.ledger.CustomerLedger(context.Background(), shop, "C", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)

	// A balance change made outside the engine does not bump the cache
	// generation, so the cached report is still served.
	require.NoError(t, f.store.Customers().ApplyDelta(context.Background(), shop, "C",
		models.BalanceDelta{Debit: dec("5")}))
	again, err := f.ledger.CustomerLedger(context.Background(), shop, "C", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, first.Customer.Debit.String(), again.Customer.Debit.String())
	assert.Len(t, f.cache.data, 1)

	_, err = f.act(ActionSettle, "o-1", "Cash", "1000")
	require.NoError(t, err)
	after, err := f.ledger.CustomerLedger(context.Background(), shop, "C", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, after.Entries, 2)
}

func TestSalesSummary(t *testing.T) {
	f := newFixture(t, OrderServiceOptions{})

	f.clock.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	f.create("o-cash", "C", "1000")
	f.create("o-discard", "C", "400")
	f.create("o-debt", "D", "500")

	f.clock.Set(time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC))
	f.create("o-bank", "D", "250")
	f.create("o-open", "C", "150")

	_, err := f.act(ActionSettle, "o-cash", "Cash", "1000")
	require.NoError(t, err)
	_, err = f.act(ActionDiscard, "o-discard", "", "")
	require.NoError(t, err)
	_, err = f.act(ActionSettle, "o-debt", "Cash", "200")
	require.NoError(t, err)
	_, err = f.act(ActionSettle, "o-bank", "UPI", "250")
	require.NoError(t, err)

	// Created outside the window.
	f.clock.Set(time.Date(2024, 5, 9, 9, 0, 0, 0, time.UTC))
	f.create("o-late", "C", "999")

	s, err := f.ledger.SalesSummary(context.Background(), shop, "2024-05-01", "2024-05-03")
	require.NoError(t, err)

	assert.Equal(t, 4, s.Totals.OrderCount)
	assert.Equal(t, "1900", s.Totals.Sales.String())
	assert.Equal(t, "1450", s.Totals.Received.String())
	assert.Equal(t, "450", s.Totals.Outstanding.String())

	assert.Equal(t, "1200", s.Payments.Cash.String())
	assert.Equal(t, "250", s.Payments.Bank.String())
	assert.Equal(t, "300", s.Payments.Debt.String())
	assert.Equal(t, "150", s.Payments.Unsettled.String())

	// Every kept order carries 2 kg of rice and 2 litres of oil.
	assert.Equal(t, "8", s.Quantities.Kg.String())
	assert.Equal(t, "8", s.Quantities.Litre.String())

	require.Len(t, s.Daily, 3)
	assert.Equal(t, "2024-05-01", s.Daily[0].Date)
	assert.Equal(t, 2, s.Daily[0].OrderCount)
	assert.Equal(t, "1500", s.Daily[0].Sales.String())
	assert.Equal(t, "1200", s.Daily[0].Received.String())
	assert.Equal(t, 0, s.Daily[1].OrderCount)
	assert.True(t, s.Daily[1].Sales.IsZero())
	assert.Equal(t, 2, s.Daily[2].OrderCount)
	assert.Equal(t, "400", s.Daily[2].Sales.String())
	assert.Equal(t, "250", s.Daily[2].Received.String())
}

func TestBuildSalesSummaryEmpty(t *testing.T) {
	rng, err := ParseDateRange("2024-02-27", "2024-03-01", time.Now())
	require.NoError(t, err)
	s := BuildSalesSummary(nil, rng)
	assert.Equal(t, 0, s.Totals.OrderCount)
	require.Len(t, s.Daily, 4, "leap day included")
	assert.Equal(t, "2024-02-29", s.Daily[2].Date)
}
