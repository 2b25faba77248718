package routes

import (
	adminapi "gig-payments/internal/api/admin"
	"gig-payments/internal/api/billing"
	notificationsapi "gig-payments/internal/api/notifications"
	stripewebhooks "gig-payments/internal/api/stripewebhook"
	"gig-payments/internal/api/users"
	"gig-payments/internal/app/http/middleware"
	"gig-payments/internal/metrics"
	"gig-payments/internal/realtime"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	JWTSecret     string
	Webhook       *stripewebhooks.Handler
	Realtime      *realtime.Handler
	Notifications *notificationsapi.Handler
	Billing       *billing.Handler
	Users         *users.Handler
	Admin         *adminapi.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.POST("/webhook", h.Webhook.Webhook)
	r.GET("/ws", h.Realtime.Serve)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(h.JWTSecret))
	auth.GET("/me", h.Users.GetCurrentUser)
	auth.GET("/notifications", h.Notifications.List)
	auth.GET("/notifications/unread-count", h.Notifications.UnreadCount)
	auth.POST("/notifications/:id/read", h.Notifications.MarkRead)
	auth.GET("/payments", h.Billing.GetPaymentHistory)
	auth.GET("/earnings", h.Billing.GetEarnings)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.JWTSecret), middleware.RequireRole("admin"))
	admin.GET("/webhook-events", h.Admin.ListWebhookEvents)
	admin.POST("/webhook-events/:id/redrive", h.Admin.RedriveWebhookEvent)
	admin.GET("/connections", h.Admin.ListConnections)
}
