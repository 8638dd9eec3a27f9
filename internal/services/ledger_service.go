package services

import (
	"context"
	"log"
	"sort"
	"time"

	"shop_ledger/internal/models"
	"shop_ledger/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	dateLayout        = "2006-01-02"
	defaultWindowDays = 30
	maxWindowDays     = 366
)

// ReportCache stores rendered reports per shop. A shop's reports are
// invalidated together whenever one of its orders changes.
type ReportCache interface {
	// GetReport loads the named report into dest. gen is the shop's
	// current cache generation and must be passed back to SetReport.
	GetReport(ctx context.Context, userID, name string, dest interface{}) (gen int64, hit bool, err error)
	SetReport(ctx context.Context, userID string, gen int64, name string, value interface{}) error
	InvalidateShop(ctx context.Context, userID string) error
}

// DateRange is an inclusive range of calendar days in UTC.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange reads YYYY-MM-DD bounds. A missing to means today and a
// missing from means the 30 days ending at to. Ranges longer than
// maxWindowDays are rejected.
func ParseDateRange(from, to string, now time.Time) (DateRange, error) {
	var rng DateRange
	if to == "" {
		n := now.UTC()
		rng.To = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return rng, invalid("to", "must be a date in YYYY-MM-DD format")
		}
		rng.To = t
	}
	if from == "" {
		rng.From = rng.To.AddDate(0, 0, -(defaultWindowDays - 1))
	} else {
		f, err := time.Parse(dateLayout, from)
		if err != nil {
			return rng, invalid("from", "must be a date in YYYY-MM-DD format")
		}
		rng.From = f
	}
	if rng.From.After(rng.To) {
		return rng, invalid("from", "must not be after to")
	}
	if rng.From.AddDate(0, 0, maxWindowDays).Before(rng.end()) {
		return rng, invalid("from", "range must not exceed %d days", maxWindowDays)
	}
	return rng, nil
}

func (r DateRange) end() time.Time {
	return r.To.AddDate(0, 0, 1)
}

func (r DateRange) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(r.From) && t.Before(r.end())
}

func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) key() string {
	return r.From.Format(dateLayout) + ":" + r.To.Format(dateLayout)
}

type LedgerEntryType string

const (
	EntrySale       LedgerEntryType = "Sale"
	EntryPayment    LedgerEntryType = "Payment"
	EntryAdjustment LedgerEntryType = "Adjustment"
)

type LedgerEntry struct {
	Date         time.Time               `json:"date"`
	Type         LedgerEntryType         `json:"type"`
	OrderID      string                  `json:"orderId"`
	SerialNumber string                  `json:"serialNumber,omitempty"`
	Description  string                  `json:"description"`
	Method       models.SettlementMethod `json:"method,omitempty"`
	Debit        decimal.Decimal         `json:"debit"`
	Credit       decimal.Decimal         `json:"credit"`
	Balance      decimal.Decimal         `json:"balance"`
	Note         string                  `json:"note,omitempty"`
}

type LedgerTotals struct {
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
	Sales   int             `json:"sales"`
}

type CustomerLedger struct {
	Customer models.Customer `json:"customer"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Entries  []LedgerEntry   `json:"entries"`
	Totals   LedgerTotals    `json:"totals"`
}

// BuildCustomerLedger replays the customer's orders into chronological
// ledger entries falling inside rng.
func BuildCustomerLedger(customer models.Customer, orders []models.Order, rng DateRange) CustomerLedger {
	entries := make([]LedgerEntry, 0)
	for _, o := range orders {
		if o.CustomerID != customer.CustomerID || o.UserID != customer.UserID {
			continue
		}
		if rng.Contains(o.CreatedAt) {
			entries = append(entries, LedgerEntry{
				Date:         o.CreatedAt.UTC(),
				Type:         EntrySale,
				OrderID:      o.OrderID,
				SerialNumber: o.SerialNumber,
				Description:  "Sale",
				Debit:        o.Total,
				Credit:       decimal.Zero,
			})
		}
		for _, h := range o.SettlementHistory {
			if !rng.Contains(h.At) {
				continue
			}
			e := LedgerEntry{
				Date:         h.At.UTC(),
				OrderID:      o.OrderID,
				SerialNumber: o.SerialNumber,
				Method:       h.Method,
				Debit:        decimal.Zero,
				Credit:       decimal.Zero,
				Note:         h.Note,
			}
			switch h.Action {
			case models.ActionSettled:
				if paid := h.Paid(); paid.IsPositive() {
					e.Type = EntryPayment
					e.Description = "Payment received"
					e.Credit = paid
				} else {
					e.Type = EntryAdjustment
					e.Description = "Marked as debt"
				}
			case models.ActionDiscarded:
				e.Type = EntryAdjustment
				e.Description = "Order discarded"
				e.Credit = o.Total
			default:
				continue
			}
			entries = append(entries, e)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	totals := LedgerTotals{Debit: decimal.Zero, Credit: decimal.Zero, Balance: decimal.Zero}
	for i := range entries {
		totals.Debit = totals.Debit.Add(entries[i].Debit)
		totals.Credit = totals.Credit.Add(entries[i].Credit)
		totals.Balance = totals.Debit.Sub(totals.Credit)
		entries[i].Balance = totals.Balance
		if entries[i].Type == EntrySale {
			totals.Sales++
		}
	}

	return CustomerLedger{
		Customer: customer,
		From:     rng.From.Format(dateLayout),
		To:       rng.To.Format(dateLayout),
		Entries:  entries,
		Totals:   totals,
	}
}

type SalesTotals struct {
	OrderCount  int             `json:"orderCount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Sales       decimal.Decimal `json:"sales"`
	Received    decimal.Decimal `json:"received"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type PaymentBreakdown struct {
	Cash      decimal.Decimal `json:"cash"`
	Bank      decimal.Decimal `json:"bank"`
	Debt      decimal.Decimal `json:"debt"`
	Unsettled decimal.Decimal `json:"unsettled"`
}

type DailySales struct {
	Date       string          `json:"date"`
	OrderCount int             `json:"orderCount"`
	Sales      decimal.Decimal `json:"sales"`
	Received   decimal.Decimal `json:"received"`
}

type SalesSummary struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Totals     SalesTotals            `json:"totals"`
	Quantities models.QuantitySummary `json:"quantities"`
	Payments   PaymentBreakdown       `json:"payments"`
	Daily      []DailySales           `json:"daily"`
}

// BuildSalesSummary aggregates the orders created inside rng. Discarded
// orders are left out entirely.
func BuildSalesSummary(orders []models.Order, rng DateRange) SalesSummary {
	days := rng.Days()
	daily := make([]DailySales, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		k := d.Format(dateLayout)
		daily[i] = DailySales{Date: k, Sales: decimal.Zero, Received: decimal.Zero}
		index[k] = i
	}

	sum := SalesSummary{
		From:  rng.From.Format(dateLayout),
		To:    rng.To.Format(dateLayout),
		Daily: daily,
		Totals: SalesTotals{
			Subtotal: decimal.Zero, Sales: decimal.Zero, Received: decimal.Zero, Outstanding: decimal.Zero,
		},
		Payments: PaymentBreakdown{
			Cash: decimal.Zero, Bank: decimal.Zero, Debt: decimal.Zero, Unsettled: decimal.Zero,
		},
	}

	for i := range orders {
		o := &orders[i]
		if o.IsDiscarded() || !rng.Contains(o.CreatedAt) {
			continue
		}
		sum.Totals.OrderCount++
		sum.Totals.Subtotal = sum.Totals.Subtotal.Add(o.Subtotal)
		sum.Totals.Sales = sum.Totals.Sales.Add(o.Total)
		sum.Totals.Received = sum.Totals.Received.Add(o.SettlementAmount)
		sum.Totals.Outstanding = sum.Totals.Outstanding.Add(o.Outstanding())
		sum.Quantities.Merge(o.QuantitySummary)

		for _, h := range o.SettlementHistory {
			switch h.Method {
			case models.MethodCash:
				sum.Payments.Cash = sum.Payments.Cash.Add(h.Paid())
			case models.MethodBank:
				sum.Payments.Bank = sum.Payments.Bank.Add(h.Paid())
			}
		}
		switch o.State {
		case models.StateSettledDebt:
			sum.Payments.Debt = sum.Payments.Debt.Add(o.Outstanding())
		case models.StateUnsettled:
			sum.Payments.Unsettled = sum.Payments.Unsettled.Add(o.Outstanding())
		}

		if j, ok := index[o.CreatedAt.UTC().Format(dateLayout)]; ok {
			daily[j].OrderCount++
			daily[j].Sales = daily[j].Sales.Add(o.Total)
			daily[j].Received = daily[j].Received.Add(o.SettlementAmount)
		}
	}
	return sum
}

type LedgerService interface {
	CustomerLedger(ctx context.Context, userID, customerID, from, to string) (*CustomerLedger, error)
	SalesSummary(ctx context.Context, userID, from, to string) (*SalesSummary, error)
}

type ledgerService struct {
	repos repository.Repositories
	cache ReportCache
	clock func() time.Time
}

func NewLedgerService(repos repository.Repositories, cache ReportCache, clock func() time.Time) LedgerService {
	if clock == nil {
		clock = time.Now
	}
	return &ledgerService{repos: repos, cache: cache, clock: clock}
}

func (s *ledgerService) CustomerLedger(ctx context.Context, userID, customerID, from, to string) (*CustomerLedger, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	if customerID == "" {
		return nil, invalid("customerId", "is required")
	}
	rng, err := ParseDateRange(from, to, s.clock())
	if err != nil {
		return nil, err
	}

	name := "ledger:" + customerID + ":" + rng.key()
	var cached CustomerLedger
	gen, hit := s.cached(ctx, userID, name, &cached)
	if hit {
		return &cached, nil
	}

	customer, err := s.repos.Customers().GetByID(ctx, userID, customerID)
	if err != nil {
		return nil, classify(err)
	}
	orders, err := s.repos.Orders().List(ctx, userID, repository.OrderFilter{CustomerID: customerID})
	if err != nil {
		return nil, classify(err)
	}
	ledger := BuildCustomerLedger(*customer, orders, rng)
	s.store(ctx, userID, gen, name, ledger)
	return &ledger, nil
}

func (s *ledgerService) SalesSummary(ctx context.Context, userID, from, to string) (*SalesSummary, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	rng, err := ParseDateRange(from, to, s.clock())
	if err != nil {
		return nil, err
	}

	name := "sales:" + rng.key()
	var cached SalesSummary
	gen, hit := s.cached(ctx, userID, name, &cached)
	if hit {
		return &cached, nil
	}

	start, end := rng.From, rng.end()
	orders, err := s.repos.Orders().List(ctx, userID, repository.OrderFilter{CreatedFrom: &start, CreatedTo: &end})
	if err != nil {
		return nil, classify(err)
	}
	summary := BuildSalesSummary(orders, rng)
	s.store(ctx, userID, gen, name, summary)
	return &summary, nil
}

func (s *ledgerService) cached(ctx context.Context, userID, name string, dest interface{}) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, hit, err := s.cache.GetReport(ctx, userID, name, dest)
	if err != nil {
		log.Printf("Report cache read failed for %s/%s: %v", userID, name, err)
		return gen, false
	}
	return gen, hit
}

func (s *ledgerService) store(ctx context.Context, userID string, gen int64, name string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetReport(ctx, userID, gen, name, value); err != nil {
		log.Printf("Report cache write failed for %s/%s: %v", userID, name, err)
	}
}
