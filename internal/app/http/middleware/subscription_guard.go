package middleware

import (
	"errors"
	"net/http"

	"invoicehub/database"
	"invoicehub/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// RequireActiveSubscription gates product features on billing state. Accounts
// that are past_due, unpaid or canceled are locked out unless they are on the
// free tier, which has no billing at all.
func RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
			return
		}

		sub, err := subscriptions.NewStore(database.DB).ByUserID(userID)
		if err != nil {
			if errors.Is(err, subscriptions.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "No subscription record for this account",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load subscription",
			})
			return
		}

		if subscriptions.AccessBlocked(sub.Tier, sub.Status) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "Your subscription is " + sub.Status,
			})
			return
		}

		c.Next()
	}
}
