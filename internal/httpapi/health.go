package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthStatusOK = "OK"

// HealthHandler reports liveness together with the configured environment name.
func HealthHandler(environment string, clock func() time.Time) gin.HandlerFunc {
	if clock == nil {
		clock = time.Now
	}
	return func(context *gin.Context) {
		context.JSON(http.StatusOK, gin.H{
			"status":      healthStatusOK,
			"timestamp":   timestamp(clock()),
			"environment": environment,
		})
	}
}
