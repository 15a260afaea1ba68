package handlers

import (
	"net/http"
	"strings"

	"schoolfees/middleware"
	"schoolfees/models"
	"schoolfees/services/collection"
	"schoolfees/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client's retry token for a collection.
const IdempotencyKeyHeader = "Idempotency-Key"

type FeeHandler struct {
	Service collection.CollectionService
	Logger  *zap.Logger
}

func NewFeeHandler(svc collection.CollectionService, logger *zap.Logger) *FeeHandler {
	return &FeeHandler{Service: svc, Logger: logger}
}

// CollectFees handles POST /api/fees/payments.
func (h *FeeHandler) CollectFees(c *gin.Context) {
	logger := getLogger(c, h.Logger)

	var req models.CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Debug("CollectFees: invalid request body", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
		req.IdempotencyKey = key
	}
	req.CallerIdentity = c.GetString(middleware.IdentityKey)

	result, err := h.Service.CollectFees(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// GetPayment handles GET /api/fees/payments/:paymentId.
func (h *FeeHandler) GetPayment(c *gin.Context) {
	result, err := h.Service.GetPayment(c.Request.Context(), c.Query("school_code"), c.Param("paymentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListStudentPayments handles GET /api/fees/students/:studentId/payments.
func (h *FeeHandler) ListStudentPayments(c *gin.Context) {
	payments, err := h.Service.ListStudentPayments(c.Request.Context(), c.Query("school_code"), c.Param("studentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// ListStudentObligations handles GET /api/fees/students/:studentId/obligations.
func (h *FeeHandler) ListStudentObligations(c *gin.Context) {
	fees, err := h.Service.ListStudentObligations(c.Request.Context(), c.Query("school_code"), c.Param("studentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligations": fees})
}

func (h *FeeHandler) writeError(c *gin.Context, err error) {
	ce := collection.AsCollectionError(err)
	status := ce.HTTPStatus()
	if status >= http.StatusInternalServerError {
		getLogger(c, h.Logger).Error("Fee request failed", zap.String("code", ce.Code), zap.Error(err))
		// Internal causes stay in the logs.
		utils.JSONError(c, status, ce.Message, ce.Code)
		return
	}
	details := ce.Details
	if details == "" {
		details = ce.Code
	}
	utils.JSONError(c, status, ce.Message, details)
}
