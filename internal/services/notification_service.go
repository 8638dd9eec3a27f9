package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"shop_ledger/internal/models"
	"shop_ledger/pkg/whatsapp"
)

// Notifier tells a customer about a change to one of their orders. Delivery
// is best effort; implementations log failures instead of returning them.
type Notifier interface {
	OrderUpdated(ctx context.Context, order *models.Order, event string)
}

type nopNotifier struct{}

func NewNopNotifier() Notifier { return nopNotifier{} }

func (nopNotifier) OrderUpdated(context.Context, *models.Order, string) {}

// MessageSender is the part of the WhatsApp client the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, phone, message string) error
}

var _ MessageSender = (*whatsapp.Client)(nil)

type whatsAppNotifier struct {
	sender  MessageSender
	timeout time.Duration
	async   bool
}

func NewWhatsAppNotifier(sender MessageSender, timeout time.Duration) Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &whatsAppNotifier{sender: sender, timeout: timeout, async: true}
}

func (n *whatsAppNotifier) OrderUpdated(ctx context.Context, order *models.Order, event string) {
	if order.CustomerContact == "" {
		return
	}
	msg := FormatReceipt(order, event)
	send := func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.sender.SendMessage(sendCtx, order.CustomerContact, msg); err != nil {
			log.Printf("Failed to send %s receipt for order %s: %v", event, order.OrderID, err)
		}
	}
	if !n.async {
		send()
		return
	}
	go send()
}

// FormatReceipt renders the text sent to the customer after an action.
func FormatReceipt(order *models.Order, event string) string {
	var b strings.Builder
	shop := order.ShopName
	if shop == "" {
		shop = "Your shop"
	}
	fmt.Fprintf(&b, "*%s*\n", shop)
	fmt.Fprintf(&b, "Order %s", order.OrderID)
	if order.SerialNumber != "" {
		fmt.Fprintf(&b, " (#%s)", order.SerialNumber)
	}
	b.WriteString("\n")

	switch event {
	case ActionDiscard:
		b.WriteString("Status: cancelled\n")
	default:
		fmt.Fprintf(&b, "Total: %s\n", order.Total.StringFixed(2))
		fmt.Fprintf(&b, "Paid: %s\n", order.SettlementAmount.StringFixed(2))
		if order.IsDebt() {
			fmt.Fprintf(&b, "Due: %s\n", order.Outstanding().StringFixed(2))
		} else {
			fmt.Fprintf(&b, "Status: paid (%s)\n", order.State.Method())
		}
	}
	if n := len(order.SettlementHistory); n > 0 && order.SettlementHistory[n-1].Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", order.SettlementHistory[n-1].Note)
	}
	b.WriteString("Thank you!")
	return b.String()
}
