package routes

import (
	"net/http"
	"time"

	"rapidcare/handlers"
	"rapidcare/middleware"
	"rapidcare/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterSyncRoutes registers sync lifecycle and session control endpoints.
func RegisterSyncRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/sync")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.GET("/status", hb.Sync.SyncStatusHandler)
		api.POST("/sessions", hb.Sync.StartSessionHandler)
		api.GET("/sessions/:sessionId", hb.Sync.SessionStatusHandler)
		api.DELETE("/sessions/:sessionId", hb.Sync.StopSessionHandler)

		// Token rotation is an operator action.
		api.POST("/token", middleware.RequireRole("admin"), hb.Sync.SetAuthTokenHandler)
	}
}

// RegisterHospitalRoutes registers per-hospital resource and sync endpoints.
func RegisterHospitalRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/hospitals")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("/:id/sync", hb.Sync.StartHospitalSyncHandler)
		api.DELETE("/:id/sync", hb.Sync.StopHospitalSyncHandler)
		api.GET("/:id/connection", hb.Sync.ConnectionStatusHandler)
		api.GET("/:id/snapshot", hb.Sync.SnapshotHandler)

		api.GET("/:id/resources", hb.Ledger.GetResourcesHandler)
		api.GET("/:id/resources/:resourceType", hb.Ledger.GetResourceHandler)
		api.PUT("/:id/resources/:resourceType", middleware.RequireRole("admin"), hb.Ledger.SetTotalsHandler)

		api.GET("/:id/bookings/pending", hb.Booking.PendingBookingsHandler)
		api.GET("/:id/audit", hb.Booking.HospitalAuditHandler)
	}
}

// RegisterBookingRoutes sets up the endpoints for the approval workflow.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	bookingGroup := r.Group("/api/bookings")
	{
		bookingGroup.Use(middleware.JWTAuthMiddleware())
		bookingGroup.POST("", hb.Booking.SubmitBookingHandler)
		bookingGroup.GET("/:bookingId", hb.Booking.GetBookingHandler)
		bookingGroup.GET("/:bookingId/history", hb.Booking.BookingHistoryHandler)
		bookingGroup.POST("/:bookingId/approve", hb.Booking.ApproveBookingHandler)
		bookingGroup.POST("/:bookingId/decline", hb.Booking.DeclineBookingHandler)
		bookingGroup.POST("/:bookingId/cancel", hb.Booking.CancelBookingHandler)
		bookingGroup.POST("/:bookingId/complete", hb.Booking.CompleteBookingHandler)
	}
}

// RegisterDeviceRoutes registers push-notification device endpoints.
func RegisterDeviceRoutes(r *gin.Engine) {
	api := r.Group("/api/devices")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("/token", handlers.RegisterDeviceTokenHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, utils.GetHealthStatus())
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware())

	RegisterSyncRoutes(r, hb)
	RegisterHospitalRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterDeviceRoutes(r)
	RegisterHealthRoute(r)
}
