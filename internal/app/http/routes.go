package routes

import (
	adminapi "invoicehub/internal/api/admin"
	authapi "invoicehub/internal/api/auth"
	"invoicehub/internal/api/billing"
	stripewebhooks "invoicehub/internal/api/stripewebhook"
	"invoicehub/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	// raw body route, no sanitization — the signature covers the exact bytes
	r.POST("/webhook", stripewebhooks.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)

	public.GET("/auth/google", authapi.GoogleStart)
	public.GET("/auth/google/callback", authapi.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/subscription", billing.GetSubscription)
	auth.POST("/create-checkout-session", billing.CreateCheckoutSession)
	auth.POST("/billing-portal", billing.CreateBillingPortal)

	// Subscribed users
	subscribed := auth.Group("/")
	subscribed.Use(middleware.RequireActiveSubscription())
	subscribed.GET("/payments", billing.GetPaymentHistory)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/dashboard", adminapi.AdminDashboard)
	admin.GET("/subscriptions", adminapi.ListSubscriptions)
	admin.GET("/subscriptions/:ref/audit", adminapi.AuditSubscription)
	admin.POST("/subscriptions/:ref/repair", adminapi.RepairSubscription)
}
