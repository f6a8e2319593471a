package upload

import (
	"net/http"

	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers"
	"github.com/gin-gonic/gin"
)

type credentialRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// IssueUploadURL hands the client a 15-minute presigned PUT URL so the
// image bytes go straight to the object store instead of through us.
func (h *Handler) IssueUploadURL(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if req.FileName == "" || req.ContentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileName and contentType are required"})
		return
	}

	cred, err := h.Issuer.IssueWriteCredential(c.Request.Context(), req.FileName, req.ContentType)
	if err != nil {
		c.JSON(handlers.StatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":         cred.URL,
		"fileName":    cred.FileName,
		"contentType": cred.ContentType,
		"expiresAt":   cred.ExpiresAt,
	})
}
