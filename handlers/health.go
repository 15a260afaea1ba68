package handlers

import (
	"net/http"

	"schoolfees/utils"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct{}

// Health handles GET /health from the last background health snapshot. Redis outages
// only degrade receipt numbering and caching, so they do not fail the check.
func (h *HealthHandler) Health(c *gin.Context) {
	status := utils.GetHealthStatus()
	code := http.StatusOK
	state := "ok"
	switch {
	case !status.Mongo:
		code = http.StatusServiceUnavailable
		state = "down"
	case !status.Healthy():
		state = "degraded"
	}
	c.JSON(code, gin.H{"status": state, "checks": status})
}
