package stripewebhooks

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"invoicehub/config"
	"invoicehub/database"
	"invoicehub/internal/domain/subscriptions"
	"invoicehub/internal/reconcile"

	"github.com/gin-gonic/gin"
)

// Stripe retries any non-2xx response, so the handler only returns 5xx for
// failures that a redelivery can actually fix.
const maxWebhookAttempts = 3

func StripeWebhook(c *gin.Context) {
	endpointSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, 65536)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := reconcile.ValidateAndParse(payload, c.GetHeader("Stripe-Signature"), endpointSecret)
	if err != nil {
		if errors.Is(err, reconcile.ErrSignature) {
			fmt.Println("❌ Stripe signature verification failed:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event payload"})
		return
	}

	retrier := reconcile.Retrier{
		Reconciler: reconcile.NewReconciler(subscriptions.NewStore(database.DB), config.TierPolicy()),
	}

	if err := retrier.ProcessWithRetry(event, maxWebhookAttempts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
