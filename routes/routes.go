package routes

import (
	"time"

	"schoolfees/handlers"
	"schoolfees/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterFeeRoutes registers the fee collection endpoints. All require a staff token.
func RegisterFeeRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/fees")
	{
		api.Use(middleware.StaffAuthMiddleware())
		api.POST("/payments", hb.CollectFeesHandler)
		api.GET("/payments/:paymentId", hb.GetPaymentHandler)
		api.GET("/students/:studentId/payments", hb.ListStudentPaymentsHandler)
		api.GET("/students/:studentId/obligations", hb.ListStudentObligationsHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and global middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", handlers.IdempotencyKeyHeader, "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterFeeRoutes(r, hb)
}
