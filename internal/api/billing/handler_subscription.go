package billing

import (
	"errors"
	"net/http"
	"time"

	"invoicehub/database"
	"invoicehub/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

type SubscriptionView struct {
	Tier               string     `json:"tier"`
	Status             string     `json:"status"`
	RegistrationOrder  int64      `json:"registration_order"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	AccessBlocked      bool       `json:"access_blocked"`
}

// GetSubscription is what the dashboard reads to decide what to show and
// whether to let the account into the product.
func GetSubscription(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	sub, err := subscriptions.NewStore(database.DB).ByUserID(userID)
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No subscription record for this account"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, SubscriptionView{
		Tier:               sub.Tier,
		Status:             sub.Status,
		RegistrationOrder:  sub.RegistrationOrder,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		TrialEnd:           sub.TrialEnd,
		AccessBlocked:      subscriptions.AccessBlocked(sub.Tier, sub.Status),
	})
}
