// Package gateway wraps the external payment provider. Services depend on
// the PaymentGateway interface so settlement logic is testable with a fake.
package gateway

import (
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Item is one line of an itemized payment link.
type Item struct {
	ID     string
	Name   string
	Amount int64
	Qty    int
}

// LinkRequest asks the provider for a hosted checkout page.
type LinkRequest struct {
	OrderCode string
	Amount    int64
	Customer  string
	Email     string
	Items     []Item
}

// PaymentGateway is the provider contract the settlement engine consumes.
type PaymentGateway interface {
	// CreatePaymentLink returns the checkout URL for a pending payment.
	CreatePaymentLink(req LinkRequest) (string, error)
	// VerifyTransaction confirms an order's final state with the provider.
	// Webhook payloads are untrusted; only this answer drives settlement.
	VerifyTransaction(orderCode string) (success bool, settled bool, err error)
}

// Midtrans implements PaymentGateway over the Snap and Core API clients.
// FinishURL is where the hosted checkout page sends the customer back.
type Midtrans struct {
	Snap      *snap.Client
	Core      *coreapi.Client
	FinishURL string
}

func NewMidtrans(snapClient *snap.Client, coreClient *coreapi.Client, finishURL string) *Midtrans {
	return &Midtrans{Snap: snapClient, Core: coreClient, FinishURL: finishURL}
}

func (m *Midtrans) CreatePaymentLink(req LinkRequest) (string, error) {
	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  it.Name,
			Price: it.Amount,
			Qty:   int32(it.Qty),
		})
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderCode,
			GrossAmt: req.Amount,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer,
			Email: req.Email,
		},
		Items: &items,
	}
	if m.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: m.FinishURL}
	}

	resp, err := m.Snap.CreateTransaction(snapReq)
	if err != nil {
		return "", fmt.Errorf("create payment link: %w", err)
	}
	return resp.RedirectURL, nil
}

func (m *Midtrans) VerifyTransaction(orderCode string) (bool, bool, error) {
	status, err := m.Core.CheckTransaction(orderCode)
	if err != nil {
		return false, false, fmt.Errorf("check transaction %s: %w", orderCode, err)
	}
	if status == nil {
		return false, false, nil
	}

	switch status.TransactionStatus {
	case "capture", "settlement":
		return true, true, nil
	case "deny", "expire", "cancel":
		return false, true, nil
	default:
		return false, false, nil
	}
}
