package admin

import (
	"net/http"
	"time"

	"invoicehub/config"
	"invoicehub/database"
	"invoicehub/internal/domain/subscriptions"
	stripeinfra "invoicehub/internal/infra/stripe"
	"invoicehub/internal/reconcile"

	"github.com/gin-gonic/gin"
)

type AdminSubscription struct {
	ID                   string     `json:"id"`
	UserID               uint       `json:"user_id"`
	RegistrationOrder    int64      `json:"registration_order"`
	Tier                 string     `json:"tier"`
	Status               string     `json:"status"`
	StripeCustomerID     *string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	TrialEnd             *time.Time `json:"trial_end,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

type AdminStats struct {
	TotalSubscriptions int            `json:"total_subscriptions"`
	RegistrationCount  int64          `json:"registration_count"`
	PerTier            map[string]int `json:"per_tier"`
	PerStatus          map[string]int `json:"per_status"`
}

func AdminDashboard(c *gin.Context) {
	var stats AdminStats

	subs, err := subscriptions.NewStore(database.DB).All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	stats.TotalSubscriptions = len(subs)
	stats.PerTier = map[string]int{}
	stats.PerStatus = map[string]int{}
	for _, s := range subs {
		stats.PerTier[s.Tier]++
		stats.PerStatus[s.Status]++
	}

	var counter subscriptions.RegistrationCounter
	if err := database.DB.First(&counter).Error; err == nil {
		stats.RegistrationCount = counter.CurrentCount
	}

	c.JSON(http.StatusOK, stats)
}

func ListSubscriptions(c *gin.Context) {
	subs, err := subscriptions.NewStore(database.DB).All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	var result []AdminSubscription
	for _, s := range subs {
		result = append(result, AdminSubscription{
			ID:                   s.ID,
			UserID:               s.UserID,
			RegistrationOrder:    s.RegistrationOrder,
			Tier:                 s.Tier,
			Status:               s.Status,
			StripeCustomerID:     s.StripeCustomerID,
			StripeSubscriptionID: s.StripeSubscriptionID,
			CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
			CurrentPeriodEnd:     s.CurrentPeriodEnd,
			TrialEnd:             s.TrialEnd,
			CreatedAt:            s.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, result)
}

// AuditSubscription compares the local record against Stripe's authoritative
// state and reports whether they match.
func AuditSubscription(c *gin.Context) {
	ref := c.Param("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing subscription ref"})
		return
	}

	consistent, err := auditor().AuditConsistency(ref)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stripe_subscription_id": ref,
		"consistent":             consistent,
	})
}

// RepairSubscription overwrites local state with whatever Stripe reports now.
func RepairSubscription(c *gin.Context) {
	ref := c.Param("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing subscription ref"})
		return
	}

	if err := auditor().Repair(ref); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stripe_subscription_id": ref,
		"status":                 "repaired",
	})
}

func auditor() *reconcile.Auditor {
	store := subscriptions.NewStore(database.DB)
	rec := reconcile.NewReconciler(store, config.TierPolicy())
	return reconcile.NewAuditor(store, stripeinfra.Client{}, rec)
}
