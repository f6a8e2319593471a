package contact

import (
	"context"
	"net/http"

	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers"
	"github.com/HairScan-Mara/Scan-Service/internal/models"
	"github.com/gin-gonic/gin"
)

// Resolver is the external subject directory.
type Resolver interface {
	Resolve(ctx context.Context, contactID string) (*models.Contact, error)
	Configured() bool
}

type Handler struct {
	Contacts Resolver
}

func NewHandler(contacts Resolver) *Handler {
	return &Handler{Contacts: contacts}
}

// Lookup resolves a subject identifier to a display profile.
func (h *Handler) Lookup(c *gin.Context) {
	subjectID := c.Query("subject_id")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id parameter is required"})
		return
	}

	profile, err := h.Contacts.Resolve(c.Request.Context(), subjectID)
	if err != nil {
		c.JSON(handlers.StatusFromError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"contact": profile,
	})
}
