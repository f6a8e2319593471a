package upload

import (
	"io"
	"net/http"
	"strconv"

	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers"
	"github.com/HairScan-Mara/Scan-Service/internal/services"
	"github.com/gin-gonic/gin"
)

// MaxImageSize bounds the multipart image payload.
const MaxImageSize = 16 << 20 // 16 MB

// Analyze runs the full pipeline on one multipart image: record creation,
// object storage, inference, normalization, persistence.
func (h *Handler) Analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}
	if fileHeader.Size > MaxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image too large: " + fileHeader.Filename})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded image: " + err.Error()})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded image: " + err.Error()})
		return
	}
	if len(image) > MaxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image too large: " + fileHeader.Filename})
		return
	}

	params := services.InferenceParams{
		ConfidenceThreshold: formFloat(c, "confidenceThreshold", 0.5),
		IOUThreshold:        formFloat(c, "iouThreshold", 0.5),
		MaxPredictions:      formInt(c, "maxPredictions", 100),
	}

	out, err := h.Coordinator.Analyze(c.Request.Context(), services.AnalyzeInput{
		ContactID:    c.PostForm("subject_id"),
		Filename:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Image:        image,
		Params:       params,
		RunDensity:   formBool(c, "runDensity", true),
		RunThickness: formBool(c, "runThickness", true),
	})
	if err != nil {
		c.JSON(handlers.StatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"upload_id":         out.Record.UploadID,
		"subject_id":        out.Record.ContactID,
		"predictions":       out.Detections,
		"class_counts":      out.ClassCounts,
		"total_predictions": out.TotalPredictions,
	})
}

func formFloat(c *gin.Context, key string, def float64) float64 {
	if v := c.PostForm(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func formInt(c *gin.Context, key string, def int) int {
	if v := c.PostForm(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func formBool(c *gin.Context, key string, def bool) bool {
	if v := c.PostForm(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
