package services

import (
	"context"
	"time"
)

// TransactionStatus is the gateway-neutral outcome of a payment.
type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "success"
	TransactionPending TransactionStatus = "pending"
	TransactionFailed  TransactionStatus = "failed"
)

// Transaction is what a gateway reports about a payment reference.
type Transaction struct {
	Reference string
	Status    TransactionStatus
	Amount    int64
	Currency  string
	Customer  string
	Metadata  map[string]string
	PaidAt    time.Time
}

// PaymentGateway looks up transactions at the payment provider.
type PaymentGateway interface {
	VerifyTransaction(ctx context.Context, reference string) (*Transaction, error)

	// Name returns the name of the provider ("stripe")
	Name() string
}
