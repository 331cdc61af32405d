package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	paypal "github.com/logpacker/PayPal-Go-SDK"
	"github.com/releasedesk/backend/internal/config"
)

// PayPalGateway implements PaymentGateway on PayPal orders. The reference is the order
// id; the checkout stores "<plan>:<user id>" as the purchase unit's reference_id.
type PayPalGateway struct {
	client *paypal.Client
	mu     sync.Mutex
}

// NewPayPalGateway creates a PayPal client and fetches its first access token.
func NewPayPalGateway(cfg *config.Config) (*PayPalGateway, error) {
	apiBase := paypal.APIBaseSandBox
	if cfg.PayPalMode == "live" {
		apiBase = paypal.APIBaseLive
	}
	client, err := paypal.NewClient(cfg.PayPalClientID, cfg.PayPalSecret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("failed to create PayPal client: %w", err)
	}
	if _, err := client.GetAccessToken(); err != nil {
		return nil, fmt.Errorf("failed to get PayPal access token: %w", err)
	}
	return &PayPalGateway{client: client}, nil
}

func (g *PayPalGateway) Name() string {
	return "paypal"
}

// VerifyTransaction fetches the order. The SDK has no context support, so ctx is only
// checked before the call.
func (g *PayPalGateway) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TimeoutError{Service: "paypal", Err: err}
	}
	g.mu.Lock()
	order, err := g.client.GetOrder(reference)
	g.mu.Unlock()
	if err != nil {
		if strings.Contains(err.Error(), "RESOURCE_NOT_FOUND") || strings.Contains(err.Error(), "404") {
			return nil, notFound("payment", reference)
		}
		return nil, &UpstreamError{Service: "paypal", Err: fmt.Errorf("failed to get order: %w", err)}
	}
	return transactionFromOrder(order), nil
}

func transactionFromOrder(order *paypal.Order) *Transaction {
	tx := &Transaction{
		Reference: order.ID,
		Metadata:  map[string]string{},
	}
	switch order.Status {
	case "COMPLETED":
		tx.Status = TransactionSuccess
	case "VOIDED", "EXPIRED", "CANCELLED":
		tx.Status = TransactionFailed
	default:
		tx.Status = TransactionPending
	}
	if len(order.PurchaseUnits) > 0 {
		unit := order.PurchaseUnits[0]
		plan, user, _ := strings.Cut(unit.ReferenceID, ":")
		tx.Metadata["plan"] = plan
		if user != "" {
			tx.Metadata["user_id"] = user
		}
		if unit.Amount != nil {
			tx.Currency = strings.ToLower(unit.Amount.Currency)
			tx.Amount = minorUnits(unit.Amount.Value)
		}
	}
	return tx
}

// minorUnits turns a decimal amount like "12.50" into 1250.
func minorUnits(value string) int64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}
