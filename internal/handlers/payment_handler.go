package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/middleware"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"github.com/releasedesk/backend/internal/services"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type PaymentHandler struct {
	subscriptionService *services.SubscriptionService
	cfg                 *config.Config
	log                 *logger.Logger
}

func NewPaymentHandler(subscriptionService *services.SubscriptionService, cfg *config.Config, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{subscriptionService: subscriptionService, cfg: cfg, log: log}
}

// Verify checks a payment reference with the gateway and activates the plan
// GET /payments/verify?reference=cs_...
func (h *PaymentHandler) Verify(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		badRequest(c, "reference is required")
		return
	}
	userID, _ := middleware.UserID(c)

	payment, err := h.subscriptionService.Verify(c.Request.Context(), userID, reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     payment.Status,
		"plan":       payment.Plan,
		"expires_at": payment.ExpiresAt,
	})
}

// Webhook acknowledges gateway notifications. Plans are only activated through Verify,
// so the event is checked and logged but the answer is always 200.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn("Failed to read webhook body", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if h.cfg.StripeWebhookSecret != "" && len(payload) > 0 {
		event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.cfg.StripeWebhookSecret)
		if err != nil {
			h.log.Warn("Webhook signature verification failed", "error", err)
		} else {
			h.logEvent(event)
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) logEvent(event stripe.Event) {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.log.Warn("Failed to parse checkout session", "event_id", event.ID, "error", err)
			return
		}
		h.log.Info("Checkout completed", "event_id", event.ID, "session_id", session.ID, "plan", session.Metadata["plan"])
	default:
		h.log.Info("Received payment event", "event_id", event.ID, "type", event.Type)
	}
}
