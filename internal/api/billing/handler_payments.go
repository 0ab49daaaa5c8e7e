package billing

import (
	"net/http"
	"os"

	"invoicehub/database"
	"invoicehub/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/invoice"
)

type PaymentView struct {
	InvoiceID  string  `json:"invoice_id"`
	Status     string  `json:"status"`
	AmountDue  float64 `json:"amount_due"`
	AmountPaid float64 `json:"amount_paid"`
	Currency   string  `json:"currency"`
	CreatedAt  int64   `json:"created_at"`
	ReceiptURL string  `json:"receipt_url,omitempty"`
}

// GetPaymentHistory lists the account's Stripe invoices. Stripe holds the
// payment ledger; nothing is persisted locally.
func GetPaymentHistory(c *gin.Context) {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe key not configured"})
		return
	}

	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	sub, err := subscriptions.NewStore(database.DB).ByUserID(userID)
	if err != nil || sub.StripeCustomerID == nil || *sub.StripeCustomerID == "" {
		c.JSON(http.StatusOK, []PaymentView{})
		return
	}

	params := &stripe.InvoiceListParams{
		Customer: stripe.String(*sub.StripeCustomerID),
	}
	params.Limit = stripe.Int64(24)

	it := invoice.List(params)

	payments := []PaymentView{}
	for it.Next() {
		inv := it.Invoice()
		payments = append(payments, PaymentView{
			InvoiceID:  inv.ID,
			Status:     string(inv.Status),
			AmountDue:  float64(inv.AmountDue) / 100.0,
			AmountPaid: float64(inv.AmountPaid) / 100.0,
			Currency:   string(inv.Currency),
			CreatedAt:  inv.Created,
			ReceiptURL: inv.HostedInvoiceURL,
		})
	}
	if err := it.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch invoices"})
		return
	}

	c.JSON(http.StatusOK, payments)
}
