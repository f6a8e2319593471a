package api

import (
	"net/http"

	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers"
	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers/contact"
	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers/upload"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

// MaxBodySize bounds every request body before parsing.
const MaxBodySize = 16 << 20 // 16 MB

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

func bodyLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodySize)
		c.Next()
	}
}

// RegisterRoutes wires all HTTP endpoints. authMW may be nil when no OIDC
// issuer is configured.
func RegisterRoutes(r *gin.Engine, uploads *upload.Handler, contacts *contact.Handler, authMW gin.HandlerFunc) {
	// Enable CORS for preflight requests
	r.Use(corsMiddleware())
	r.Use(bodyLimitMiddleware())
	r.Use(gintrace.Middleware("scan-service"))

	api := r.Group("/api")
	if authMW != nil {
		api.Use(authMW)
	}
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/status", handlers.Status)

		// Scan ingestion
		api.POST("/upload-url", uploads.IssueUploadURL) // presigned write credential
		api.POST("/analyze", uploads.Analyze)           // full inference pipeline
		api.POST("/store-analysis", uploads.StoreAnalysis)

		// History
		api.GET("/uploads", uploads.List)
		api.GET("/uploads/:id", uploads.Get)

		// Subject directory
		api.GET("/contact", contacts.Lookup)
	}
}
