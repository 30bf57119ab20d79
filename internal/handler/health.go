package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	depOK       = "ok"
	depError    = "error"
	depDisabled = "disabled"
)

// HealthHandler pings the backing stores that are configured. A nil pool or
// client reports "disabled" and does not fail the check.
type HealthHandler struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.Logger
}

func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redis,
		logger: logger.Named("HealthHandler"),
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus := depDisabled
	if h.db != nil {
		dbStatus = depOK
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = depError
			h.logger.Error("Health check: PostgreSQL ping failed", zap.Error(err))
		}
	}

	redisStatus := depDisabled
	if h.redis != nil {
		redisStatus = depOK
		if _, err := h.redis.Ping(ctx).Result(); err != nil {
			redisStatus = depError
			h.logger.Error("Health check: Redis ping failed", zap.Error(err))
		}
	}

	status, code := "ok", http.StatusOK
	if dbStatus == depError || redisStatus == depError {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"dependencies": gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}
