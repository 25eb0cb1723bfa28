package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/voiceclone/pkg/response"
)

// Health reports process liveness and database reachability.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		database := "ok"
		if db == nil {
			database = "unconfigured"
		} else if sqlDB, err := db.DB(); err != nil {
			database = "error"
		} else if err := sqlDB.PingContext(requestContext(c)); err != nil {
			database = "error"
		}

		status := http.StatusOK
		overall := "ok"
		if database == "error" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		response.Success(c, status, gin.H{
			"status":   overall,
			"database": database,
		})
	}
}
