package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
)

// UploadStore is the record of truth the coordinator writes to.
type UploadStore interface {
	CreateUpload(ctx context.Context, rec *models.UploadRecord) error
	UpdateObjectURL(ctx context.Context, uploadID, url string) error
	AttachResults(ctx context.Context, uploadID string, doc *models.AnalysisDocument) (models.UploadRecord, error)
	MarkError(ctx context.Context, uploadID, reason string) (models.UploadRecord, error)
	GetUpload(ctx context.Context, uploadID string) (models.UploadRecord, error)
	ListUploads(ctx context.Context, contactID string, limit, offset int) ([]models.UploadRecord, int64, error)
}

// ObjectStore is the slice of the object-store client the coordinator needs.
type ObjectStore interface {
	UploadObject(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) error
	ObjectURL(objectName string) string
}

// ContactResolver is the optional subject directory. Failures never block
// ingestion.
type ContactResolver interface {
	Resolve(ctx context.Context, contactID string) (*models.Contact, error)
	Configured() bool
}

// EventPublisher emits lifecycle events; nil-safe via the Publish wrapper.
type EventPublisher func(subject string, payload interface{}) error

// IngestionCoordinator owns the end-to-end scan flow and the definition of
// success: a record is completed only when inference returned, its output
// normalized, and the document persisted. Any failure on the way downgrades
// the record to error with the triggering reason captured verbatim. The
// coordinator never retries inference; a retry is a new ingestion attempt
// with a new upload id.
type IngestionCoordinator struct {
	Store     UploadStore
	Objects   ObjectStore
	Inference InferenceGateway
	Contacts  ContactResolver
	Events    EventPublisher
}

// AnalyzeInput is one image submitted for the full analysis pipeline.
type AnalyzeInput struct {
	ContactID    string
	Filename     string
	ContentType  string
	Image        []byte
	Params       InferenceParams
	RunDensity   bool
	RunThickness bool
}

// AnalyzeOutput is returned to the client alongside the persisted record.
type AnalyzeOutput struct {
	Record           models.UploadRecord
	Detections       []Detection
	ClassCounts      map[string]int
	TotalPredictions int
}

// Analyze runs the whole pipeline: create record -> store image -> infer ->
// normalize -> attach results (or mark error).
func (ic *IngestionCoordinator) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	if len(in.Image) == 0 {
		return AnalyzeOutput{}, fmt.Errorf("%w: no image provided", models.ErrValidation)
	}
	if in.ContactID == "" {
		in.ContactID = models.NewContactID()
	}
	if in.Filename == "" {
		in.Filename = "camera-capture.jpg"
	}
	if in.ContentType == "" {
		in.ContentType = GetContentType(strings.ToLower(filepath.Ext(in.Filename)))
	}

	ic.logContact(ctx, in.ContactID)

	rec := &models.UploadRecord{
		ContactID:         in.ContactID,
		Filename:          in.Filename,
		FileSize:          int64(len(in.Image)),
		FileType:          in.ContentType,
		DensityModelRun:   in.RunDensity,
		ThicknessModelRun: in.RunThickness,
	}
	if err := ic.Store.CreateUpload(ctx, rec); err != nil {
		return AnalyzeOutput{}, err
	}

	// Best effort: the record must reach a terminal state even when the
	// image copy fails, so losses here only cost the stored object.
	objectName := rec.UploadID + strings.ToLower(filepath.Ext(in.Filename))
	if ic.Objects != nil {
		if err := ic.Objects.UploadObject(ctx, bytes.NewReader(in.Image), int64(len(in.Image)), objectName, in.ContentType); err != nil {
			log.Printf("[INGEST] warning: failed to store scan image %s: %v", objectName, err)
			objectName = ""
		} else {
			rec.ObjectURL = ic.Objects.ObjectURL(objectName)
			if err := ic.Store.UpdateObjectURL(ctx, rec.UploadID, rec.ObjectURL); err != nil {
				log.Printf("[INGEST] warning: failed to record object url for %s: %v", rec.UploadID, err)
			}
		}
	} else {
		objectName = ""
	}

	detections, err := ic.Inference.Predict(ctx, in.Image, in.Params)
	if err != nil {
		return AnalyzeOutput{}, ic.failUpload(ctx, rec.UploadID, err)
	}
	if len(detections) == 0 {
		return AnalyzeOutput{}, ic.failUpload(ctx, rec.UploadID,
			fmt.Errorf("%w: no predictions returned from model", models.ErrBackend))
	}

	doc := normalizeDetections(detections, in, rec)
	updated, err := ic.Store.AttachResults(ctx, rec.UploadID, doc)
	if err != nil {
		return AnalyzeOutput{}, ic.failUpload(ctx, rec.UploadID, err)
	}

	ic.publish(SubjectScanStored, map[string]interface{}{
		"upload_id":   updated.UploadID,
		"contact_id":  updated.ContactID,
		"object_name": objectName,
		"file_type":   updated.FileType,
		"stored_at":   time.Now().UTC().Format(time.RFC3339),
	})

	return AnalyzeOutput{
		Record:           updated,
		Detections:       detections,
		ClassCounts:      countClasses(detections),
		TotalPredictions: len(detections),
	}, nil
}

// StoreAnalysis persists a results payload the client computed off-band.
// Same two-step lifecycle as Analyze: create in processing, then one
// terminal transition.
func (ic *IngestionCoordinator) StoreAnalysis(ctx context.Context, contactID string, sub models.AnalysisSubmission) (models.UploadRecord, error) {
	if strings.TrimSpace(contactID) == "" {
		return models.UploadRecord{}, fmt.Errorf("%w: subject_id is required", models.ErrValidation)
	}
	// Rejected before any record exists: a payload with no result fragments
	// can never reach completed, so there is nothing to persist.
	if models.BuildDocument(sub.Fragments, 0, "").IsEmpty() {
		return models.UploadRecord{}, fmt.Errorf("%w: analysis_data carries no result fragments", models.ErrValidation)
	}

	ic.logContact(ctx, contactID)

	rec := &models.UploadRecord{
		ContactID:         contactID,
		Filename:          sub.Filename,
		FileSize:          sub.FileSize,
		FileType:          sub.FileType,
		ObjectURL:         sub.URL,
		DensityModelRun:   boolOrDefault(sub.DensityModelRun, true),
		ThicknessModelRun: boolOrDefault(sub.ThicknessModelRun, true),
	}
	if rec.Filename == "" {
		rec.Filename = "camera-capture.jpg"
	}
	if rec.FileType == "" {
		rec.FileType = "image/jpeg"
	}

	if err := ic.Store.CreateUpload(ctx, rec); err != nil {
		return models.UploadRecord{}, err
	}

	doc := models.BuildDocument(sub.Fragments, unixFloat(time.Now()), rec.UploadID)
	updated, err := ic.Store.AttachResults(ctx, rec.UploadID, doc)
	if err != nil {
		return models.UploadRecord{}, ic.failUpload(ctx, rec.UploadID, err)
	}

	ic.publish(SubjectScanStored, map[string]interface{}{
		"upload_id":   updated.UploadID,
		"contact_id":  updated.ContactID,
		"object_name": "",
		"file_type":   updated.FileType,
		"stored_at":   time.Now().UTC().Format(time.RFC3339),
	})
	return updated, nil
}

// failUpload records the triggering reason on the record and returns the
// original error for the HTTP boundary. Exactly one error record per failed
// attempt.
func (ic *IngestionCoordinator) failUpload(ctx context.Context, uploadID string, cause error) error {
	if _, err := ic.Store.MarkError(ctx, uploadID, cause.Error()); err != nil {
		log.Printf("[INGEST] failed to mark upload %s as error: %v", uploadID, err)
	}
	ic.publish(SubjectScanFailed, map[string]interface{}{
		"upload_id": uploadID,
		"reason":    cause.Error(),
		"failed_at": time.Now().UTC().Format(time.RFC3339),
	})
	return cause
}

func (ic *IngestionCoordinator) publish(subject string, payload interface{}) {
	if ic.Events == nil {
		return
	}
	if err := ic.Events(subject, payload); err != nil {
		log.Printf("[INGEST] warning: failed to publish %s event: %v", subject, err)
	}
}

// logContact enriches logs with the subject's display name. Strictly best
// effort: any failure is reduced to a debug line.
func (ic *IngestionCoordinator) logContact(ctx context.Context, contactID string) {
	if ic.Contacts == nil || !ic.Contacts.Configured() {
		return
	}
	contact, err := ic.Contacts.Resolve(ctx, contactID)
	if err != nil {
		log.Printf("[INGEST] contact %s not resolved: %v", contactID, err)
		return
	}
	log.Printf("[INGEST] ingesting scan for %s (%s)", contact.FullName, contactID)
}

func countClasses(detections []Detection) map[string]int {
	counts := map[string]int{}
	for _, d := range detections {
		name := d.DisplayName
		if name == "" {
			name = "Unknown"
		}
		counts[name]++
	}
	return counts
}

// normalizeDetections shapes the raw model output into the results-document
// fragments clients consume.
func normalizeDetections(detections []Detection, in AnalyzeInput, rec *models.UploadRecord) *models.AnalysisDocument {
	counts := countClasses(detections)
	total := len(detections)

	var strong, medium, weak int
	for name, n := range counts {
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "weak"):
			weak += n
		case strings.Contains(lower, "medium"):
			medium += n
		case strings.Contains(lower, "thick"), strings.Contains(lower, "strong"):
			strong += n
		}
	}

	fragments := map[string]json.RawMessage{}

	if in.RunDensity {
		fragments[models.FragmentDensity] = mustJSON(map[string]interface{}{
			"total_detections": total,
			"class_counts":     counts,
		})
	}
	if in.RunThickness {
		caliber := 0.0
		if total > 0 {
			caliber = math.Round((float64(strong)+0.5*float64(medium))/float64(total)*10000) / 100
		}
		fragments[models.FragmentThickness] = mustJSON(map[string]interface{}{
			"thickness_metrics": map[string]interface{}{
				"strong":           strong,
				"medium":           medium,
				"weak":             weak,
				"total_detections": total,
			},
			"hair_caliber_index": caliber,
		})
	}
	fragments[models.FragmentModelParameters] = mustJSON(map[string]interface{}{
		"confidence_threshold": in.Params.ConfidenceThreshold,
		"iou_threshold":        in.Params.IOUThreshold,
		"max_predictions":      in.Params.MaxPredictions,
	})
	fragments[models.FragmentImageMetadata] = mustJSON(map[string]interface{}{
		"filename":         rec.Filename,
		"image_size_bytes": rec.FileSize,
		"content_type":     rec.FileType,
	})

	return models.BuildDocument(fragments, unixFloat(time.Now()), rec.UploadID)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// only reachable with non-encodable values, which we never build
		panic(err)
	}
	return data
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
