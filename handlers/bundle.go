package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups the endpoint handlers the router mounts.
type HandlerBundle struct {
	// Fee collection endpoints
	CollectFeesHandler            gin.HandlerFunc
	GetPaymentHandler             gin.HandlerFunc
	ListStudentPaymentsHandler    gin.HandlerFunc
	ListStudentObligationsHandler gin.HandlerFunc

	HealthHandler gin.HandlerFunc
}

// NewHandlerBundle binds the bundle to its handlers.
func NewHandlerBundle(fees *FeeHandler, health *HealthHandler) *HandlerBundle {
	return &HandlerBundle{
		CollectFeesHandler:            fees.CollectFees,
		GetPaymentHandler:             fees.GetPayment,
		ListStudentPaymentsHandler:    fees.ListStudentPayments,
		ListStudentObligationsHandler: fees.ListStudentObligations,
		HealthHandler:                 health.Health,
	}
}
