package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/telemetry"
)

// RegisterDebugRoutes wires operator-only endpoints. They stay off
// unless DEBUG_ROUTES is set, so the surface never leaks into
// production deployments.
func RegisterDebugRoutes(router *gin.Engine, audit *telemetry.AuditEmitter, enabled bool) {
	if !enabled || audit == nil {
		return
	}

	// Fires one synthetic entry through the audit bus so operators can
	// verify the exchange binding end to end.
	router.GET("/debug/audit-test", func(c *gin.Context) {
		audit.Emit(c.Request.Context(), "INFO", "messaging audit self-test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "emitted"})
	})
}
