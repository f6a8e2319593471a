package util

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
	"github.com/HairScan-Mara/Scan-Service/internal/previews"
	"github.com/HairScan-Mara/Scan-Service/internal/services"
	"github.com/HairScan-Mara/Scan-Service/internal/services/infrastructure"
	clamd "github.com/dutchcoders/go-clamd"
)

// ProcessStoredObject runs the post-ingest work for one stored scan image:
// a thumbnail for the history view and, when ClamAV is configured, a
// malware scan. Infected objects are deleted from the bucket; the upload
// record keeps the verdict in scan_status, never in processing_status.
func ProcessStoredObject(uploadID, objectName, clamAvURL string) {
	minioService := services.GetMinioService()
	if minioService == nil {
		log.Println("[SCAN] object store not initialized, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tempPath := filepath.Join(os.TempDir(), filepath.Base(objectName))
	if err := minioService.DownloadObject(ctx, objectName, tempPath); err != nil {
		log.Printf("[SCAN] failed to download %s: %v", objectName, err)
		return
	}
	defer os.Remove(tempPath)

	generatePreview(ctx, minioService, uploadID, tempPath)

	if clamAvURL == "" {
		return
	}

	c := clamd.NewClamd(clamAvURL)
	response, err := c.ScanFile(tempPath)
	if err != nil {
		log.Printf("[SCAN] scan failed for %s: %v", uploadID, err)
		return
	}

	status := models.ScanClean
	for res := range response {
		if res.Status == clamd.RES_FOUND {
			log.Printf("[SCAN] malware detected in %s: %s", uploadID, res.Description)
			status = models.ScanInfected

			if err := minioService.DeleteObject(ctx, objectName); err != nil {
				log.Printf("[SCAN] failed to delete infected object %s: %v", objectName, err)
				return
			}
		}
	}

	pg := infrastructure.GetPostgres()
	if pg == nil {
		log.Println("[SCAN] store not initialized, verdict not recorded")
		return
	}
	if err := pg.UpdateScanStatus(ctx, uploadID, status, time.Now()); err != nil {
		log.Printf("[SCAN] failed to update scan status for %s: %v", uploadID, err)
	} else {
		log.Printf("[SCAN] finished for %s: %s", uploadID, status)
	}
}

func generatePreview(ctx context.Context, minioService *services.MinioService, uploadID, localPath string) {
	previewPath, err := previews.GenerateScanPreview(localPath, 200)
	if err != nil {
		log.Printf("[SCAN] preview generation failed for %s: %v", uploadID, err)
		return
	}
	defer os.Remove(previewPath)

	f, err := os.Open(previewPath)
	if err != nil {
		log.Printf("[SCAN] failed to open preview for %s: %v", uploadID, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Printf("[SCAN] failed to stat preview for %s: %v", uploadID, err)
		return
	}

	previewObject := fmt.Sprintf("previews/%s.jpg", uploadID)
	if err := minioService.UploadObject(ctx, f, info.Size(), previewObject, "image/jpeg"); err != nil {
		log.Printf("[SCAN] failed to upload preview %s: %v", previewObject, err)
	}
}
