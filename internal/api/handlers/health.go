package handlers

import (
	"net/http"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/services"
	"github.com/HairScan-Mara/Scan-Service/internal/services/infrastructure"
	"github.com/gin-gonic/gin"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports which backends are configured and reachable, plus
// store-level counters. Used by deploy checks and the frontend's
// "is analysis available" probe.
func Status(c *gin.Context) {
	ctx := c.Request.Context()

	dbOK := false
	if pg := infrastructure.GetPostgres(); pg != nil && pg.Db != nil {
		dbOK = pg.Db.PingContext(ctx) == nil
	}

	storageOK := false
	if m := services.GetMinioService(); m != nil {
		storageOK = m.CheckConnection(ctx) == nil
	}

	overall := "degraded"
	if dbOK && storageOK {
		overall = "ready"
	}

	c.JSON(http.StatusOK, gin.H{
		"overall_status": overall,
		"database":       dbOK,
		"object_store":   storageOK,
		"nats":           services.NATSConnected(),
		"stats":          infrastructure.GetStats(),
		"checked_at":     time.Now().UTC().Format(time.RFC3339),
	})
}
