package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/releasedesk/backend/internal/config"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// StripeGateway implements PaymentGateway on Checkout Sessions. The reference is the
// Checkout Session id.
type StripeGateway struct {
	cfg *config.Config
}

// NewStripeGateway creates a new Stripe payment gateway
func NewStripeGateway(cfg *config.Config) *StripeGateway {
	stripe.Key = cfg.StripeSecretKey
	return &StripeGateway{cfg: cfg}
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

// VerifyTransaction fetches the Checkout Session and maps its payment status.
func (g *StripeGateway) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(reference, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return nil, notFound("payment", reference)
		}
		return nil, &UpstreamError{Service: "stripe", Err: fmt.Errorf("failed to retrieve checkout session: %w", err)}
	}
	return transactionFromSession(sess), nil
}

func transactionFromSession(sess *stripe.CheckoutSession) *Transaction {
	tx := &Transaction{
		Reference: sess.ID,
		Status:    TransactionPending,
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
		Metadata:  sess.Metadata,
		PaidAt:    time.Unix(sess.Created, 0).UTC(),
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		tx.Status = TransactionSuccess
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		tx.Status = TransactionFailed
	}
	if sess.CustomerDetails != nil {
		tx.Customer = sess.CustomerDetails.Email
	}
	return tx
}
