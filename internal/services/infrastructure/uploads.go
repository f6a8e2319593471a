package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
)

// MaxListLimit caps page sizes server-side.
const MaxListLimit = 100

// DefaultListLimit is used when the caller does not ask for a page size.
const DefaultListLimit = 50

const recordColumns = `upload_id, contact_id, filename, file_size, file_type, url,
       density_model_run, thickness_model_run, processing_status, error_message,
       analysis_results, scan_status, scanned_at, created_at, updated_at`

// CreateUpload inserts a new record in processing status. The upload id is
// allocated here when the caller has not set one; creation never reuses or
// reassigns an id.
func (p *PostgresStorage) CreateUpload(ctx context.Context, rec *models.UploadRecord) error {
	if rec.ContactID == "" {
		return fmt.Errorf("%w: contact id is required", models.ErrValidation)
	}
	if rec.UploadID == "" {
		rec.UploadID = models.NewUploadID()
	}
	if rec.ProcessingStatus == "" {
		rec.ProcessingStatus = models.StatusProcessing
	}
	if rec.ScanStatus == "" {
		rec.ScanStatus = models.ScanPending
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `
    INSERT INTO picture_uploads
        (upload_id, contact_id, filename, file_size, file_type, url,
         density_model_run, thickness_model_run, processing_status, scan_status,
         created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := p.Db.ExecContext(ctx, query,
		rec.UploadID,
		rec.ContactID,
		rec.Filename,
		rec.FileSize,
		rec.FileType,
		rec.ObjectURL,
		rec.DensityModelRun,
		rec.ThicknessModelRun,
		rec.ProcessingStatus,
		rec.ScanStatus,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert upload: %v", models.ErrBackend, err)
	}
	return nil
}

// UpdateObjectURL records the stored asset's reference once the out-of-band
// object copy succeeds. Metadata only; never touches the lifecycle status.
func (p *PostgresStorage) UpdateObjectURL(ctx context.Context, uploadID, url string) error {
	res, err := p.Db.ExecContext(ctx, `
        UPDATE picture_uploads
        SET url = $1, updated_at = NOW()
        WHERE upload_id = $2`,
		url, uploadID)
	if err != nil {
		return fmt.Errorf("%w: update object url: %v", models.ErrBackend, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: upload %s", models.ErrNotFound, uploadID)
	}
	return nil
}

// AttachResults transitions the record to completed, writing the results
// document. Single-shot: a record that already reached a terminal state is
// never overwritten.
func (p *PostgresStorage) AttachResults(ctx context.Context, uploadID string, doc *models.AnalysisDocument) (models.UploadRecord, error) {
	if doc.IsEmpty() {
		return models.UploadRecord{}, fmt.Errorf("%w: a completed record requires a non-empty results document", models.ErrValidation)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return models.UploadRecord{}, fmt.Errorf("%w: encode results document: %v", models.ErrValidation, err)
	}
	return p.transition(ctx, uploadID, models.StatusCompleted, payload, "")
}

// MarkError transitions the record to error, retaining the reason. Same
// not-found / already-terminal rules as AttachResults.
func (p *PostgresStorage) MarkError(ctx context.Context, uploadID, reason string) (models.UploadRecord, error) {
	return p.transition(ctx, uploadID, models.StatusError, nil, reason)
}

// transition performs the single terminal state change a record is allowed,
// inside one transaction. The row lock serializes concurrent attempts so
// exactly one wins; the rest see ErrInvalidState.
func (p *PostgresStorage) transition(ctx context.Context, uploadID string, to models.ProcessingStatus, results []byte, reason string) (models.UploadRecord, error) {
	tx, err := p.Db.BeginTx(ctx, nil)
	if err != nil {
		return models.UploadRecord{}, fmt.Errorf("%w: begin transaction: %v", models.ErrBackend, err)
	}
	defer tx.Rollback()

	var current models.ProcessingStatus
	err = tx.QueryRowContext(ctx,
		`SELECT processing_status FROM picture_uploads WHERE upload_id = $1 FOR UPDATE`,
		uploadID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UploadRecord{}, fmt.Errorf("%w: upload %s", models.ErrNotFound, uploadID)
	}
	if err != nil {
		return models.UploadRecord{}, fmt.Errorf("%w: load upload %s: %v", models.ErrBackend, uploadID, err)
	}
	if current.IsTerminal() {
		return models.UploadRecord{}, fmt.Errorf("%w: upload %s is already %s", models.ErrInvalidState, uploadID, current)
	}

	if to == models.StatusCompleted {
		_, err = tx.ExecContext(ctx, `
            UPDATE picture_uploads
            SET processing_status = $1, analysis_results = $2, updated_at = NOW()
            WHERE upload_id = $3`,
			to, results, uploadID)
	} else {
		_, err = tx.ExecContext(ctx, `
            UPDATE picture_uploads
            SET processing_status = $1, error_message = $2, updated_at = NOW()
            WHERE upload_id = $3`,
			to, reason, uploadID)
	}
	if err != nil {
		return models.UploadRecord{}, fmt.Errorf("%w: transition upload %s: %v", models.ErrBackend, uploadID, err)
	}

	rec, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM picture_uploads WHERE upload_id = $1`, uploadID))
	if err != nil {
		return models.UploadRecord{}, fmt.Errorf("%w: reread upload %s: %v", models.ErrBackend, uploadID, err)
	}

	if err := tx.Commit(); err != nil {
		return models.UploadRecord{}, fmt.Errorf("%w: commit transition: %v", models.ErrBackend, err)
	}
	return rec, nil
}

// GetUpload returns a single record by id.
func (p *PostgresStorage) GetUpload(ctx context.Context, uploadID string) (models.UploadRecord, error) {
	rec, err := scanRecord(p.Db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM picture_uploads WHERE upload_id = $1`, uploadID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.UploadRecord{}, fmt.Errorf("%w: upload %s", models.ErrNotFound, uploadID)
	}
	if err != nil {
		return models.UploadRecord{}, fmt.Errorf("%w: get upload %s: %v", models.ErrBackend, uploadID, err)
	}
	return rec, nil
}

// ListUploads returns a subject's records, most recent first, plus the
// subject's total count. A subject with no records yields an empty page.
func (p *PostgresStorage) ListUploads(ctx context.Context, contactID string, limit, offset int) ([]models.UploadRecord, int64, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	err := p.Db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM picture_uploads WHERE contact_id = $1`, contactID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: count uploads: %v", models.ErrBackend, err)
	}

	rows, err := p.Db.QueryContext(ctx, `
        SELECT `+recordColumns+`
        FROM picture_uploads
        WHERE contact_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`,
		contactID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list uploads: %v", models.ErrBackend, err)
	}
	defer rows.Close()

	uploads := make([]models.UploadRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scan upload row: %v", models.ErrBackend, err)
		}
		uploads = append(uploads, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterate uploads: %v", models.ErrBackend, err)
	}
	return uploads, total, nil
}

// UpdateScanStatus records the malware-scan verdict for the stored object.
// Intentionally independent of processing_status.
func (p *PostgresStorage) UpdateScanStatus(ctx context.Context, uploadID, status string, scannedAt time.Time) error {
	_, err := p.Db.ExecContext(ctx, `
        UPDATE picture_uploads
        SET scan_status = $1, scanned_at = $2, updated_at = NOW()
        WHERE upload_id = $3`,
		status, scannedAt, uploadID)
	if err != nil {
		return fmt.Errorf("%w: update scan status: %v", models.ErrBackend, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (models.UploadRecord, error) {
	var rec models.UploadRecord
	var errMsg sql.NullString
	var results []byte
	var scanStatus sql.NullString
	var scannedAt sql.NullTime

	err := row.Scan(
		&rec.UploadID,
		&rec.ContactID,
		&rec.Filename,
		&rec.FileSize,
		&rec.FileType,
		&rec.ObjectURL,
		&rec.DensityModelRun,
		&rec.ThicknessModelRun,
		&rec.ProcessingStatus,
		&errMsg,
		&results,
		&scanStatus,
		&scannedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return models.UploadRecord{}, err
	}

	rec.ErrorMessage = errMsg.String
	rec.ScanStatus = scanStatus.String
	if scannedAt.Valid {
		t := scannedAt.Time
		rec.ScannedAt = &t
	}
	if len(results) > 0 {
		doc := &models.AnalysisDocument{}
		if err := json.Unmarshal(results, doc); err != nil {
			return models.UploadRecord{}, fmt.Errorf("decode analysis_results for %s: %v", rec.UploadID, err)
		}
		rec.AnalysisResults = doc
	}
	return rec, nil
}
