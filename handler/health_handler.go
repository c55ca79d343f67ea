package handler

import (
	"context"
	"time"

	"gradient/repository"
	"gradient/utils"

	"github.com/gin-gonic/gin"
)

func HealthHandler(c *gin.Context, store repository.Store) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{
		"cpu_percent": utils.GetCPUUsage(ctx),
		"time":        time.Now().UTC(),
		"mongo_pool":  utils.GetMongoMetrics(),
	}
	if err := store.Ping(ctx); err != nil {
		log.WithError(err).Warn("health check: store unreachable")
		status["store"] = "down"
		utils.ServiceUnavailable(c, "Store unavailable", status)
		return
	}
	status["store"] = "up"
	utils.Success(c, status)
}
