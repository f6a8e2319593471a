package upload

import (
	"context"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
	"github.com/HairScan-Mara/Scan-Service/internal/services"
)

// Issuer mints scoped write credentials for the scan bucket.
type Issuer interface {
	IssueWriteCredential(ctx context.Context, fileName, contentType string) (models.WriteCredential, error)
}

// Handler carries the upload endpoints' dependencies.
type Handler struct {
	Issuer      Issuer
	Store       services.UploadStore
	Coordinator *services.IngestionCoordinator
}

func NewHandler(issuer Issuer, store services.UploadStore, coordinator *services.IngestionCoordinator) *Handler {
	return &Handler{
		Issuer:      issuer,
		Store:       store,
		Coordinator: coordinator,
	}
}
