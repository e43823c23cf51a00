package handler

import (
	"context"
	"net/http"
	"time"

	"facturador/internal/infra"
	"facturador/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and reports the fiscal authority circuit
// state and per-queue dead job counts; never exposes credentials or internals.
func Health(db *gorm.DB, rdb *redis.Client, breaker *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":               status == http.StatusOK,
			"db":               dbStatus,
			"redis":            redisStatus,
			"fiscal_authority": breaker.State().String(),
		}
		if redisStatus == "connected" {
			// Dead job backlog per queue; a growing count means a worker
			// needs attention even while the service itself is healthy.
			body["dead_jobs"] = worker.DLQDepths(ctx, rdb,
				worker.QueueInvoicePDF, worker.QueueEmail, worker.QueueStockSync)
		}

		c.JSON(status, body)
	}
}
