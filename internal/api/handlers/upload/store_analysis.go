package upload

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers"
	"github.com/HairScan-Mara/Scan-Service/internal/models"
	"github.com/gin-gonic/gin"
)

type storeAnalysisRequest struct {
	SubjectID    string          `json:"subject_id"`
	AnalysisData json.RawMessage `json:"analysis_data"`
}

// StoreAnalysis persists a results payload computed client-side. Validation
// happens before any side effect: a rejected request creates no record.
func (h *Handler) StoreAnalysis(c *gin.Context) {
	var req storeAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if req.SubjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id is required"})
		return
	}
	if len(req.AnalysisData) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "analysis_data is required"})
		return
	}

	var sub models.AnalysisSubmission
	if err := json.Unmarshal(req.AnalysisData, &sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis_data: " + err.Error()})
		return
	}

	rec, err := h.Coordinator.StoreAnalysis(c.Request.Context(), req.SubjectID, sub)
	if err != nil {
		c.JSON(handlers.StatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"upload_id": rec.UploadID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
