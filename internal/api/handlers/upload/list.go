package upload

import (
	"net/http"
	"strconv"

	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers"
	"github.com/HairScan-Mara/Scan-Service/internal/services/infrastructure"
	"github.com/gin-gonic/gin"
)

// List returns a subject's upload records, most recent first. A subject
// with no records gets an empty page, not an error.
func (h *Handler) List(c *gin.Context) {
	subjectID := c.Query("subject_id")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id parameter is required"})
		return
	}

	limit := queryInt(c, "limit", infrastructure.DefaultListLimit)
	offset := queryInt(c, "offset", 0)
	if limit < 1 {
		limit = infrastructure.DefaultListLimit
	}
	if limit > infrastructure.MaxListLimit {
		limit = infrastructure.MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	uploads, total, err := h.Store.ListUploads(c.Request.Context(), subjectID, limit, offset)
	if err != nil {
		c.JSON(handlers.StatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"subject_id":  subjectID,
		"uploads":     uploads,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}

// Get returns one upload record by id.
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload id is required"})
		return
	}

	rec, err := h.Store.GetUpload(c.Request.Context(), id)
	if err != nil {
		c.JSON(handlers.StatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"upload":  rec,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
