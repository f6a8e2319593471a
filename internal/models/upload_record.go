package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus is the lifecycle state of an upload record.
// It only moves forward: pending -> processing -> {completed, error}.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusError      ProcessingStatus = "error"
)

// IsTerminal reports whether no further transition is valid.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Malware scan states for the stored object. Independent of ProcessingStatus.
const (
	ScanPending  = "pending"
	ScanClean    = "clean"
	ScanInfected = "infected"
)

// UploadRecord describes one scan ingestion attempt and its outcome.
type UploadRecord struct {
	UploadID          string            `json:"upload_id"`
	ContactID         string            `json:"contact_id"`
	Filename          string            `json:"filename"`
	FileSize          int64             `json:"file_size"`
	FileType          string            `json:"file_type"`
	ObjectURL         string            `json:"url"`
	DensityModelRun   bool              `json:"density_model_run"`
	ThicknessModelRun bool              `json:"thickness_model_run"`
	ProcessingStatus  ProcessingStatus  `json:"processing_status"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	AnalysisResults   *AnalysisDocument `json:"analysis_results,omitempty"`
	ScanStatus        string            `json:"scan_status,omitempty"`
	ScannedAt         *time.Time        `json:"scanned_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewUploadID allocates a new upload identifier. The millisecond timestamp
// keeps ids roughly sortable; the uuid component makes near-simultaneous
// allocations collision-free.
func NewUploadID() string {
	return fmt.Sprintf("upload-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// NewContactID allocates a fallback subject identifier for anonymous scans.
func NewContactID() string {
	return fmt.Sprintf("contact-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
