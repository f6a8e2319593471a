package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
	"github.com/HairScan-Mara/Scan-Service/internal/services"
	"github.com/gin-gonic/gin"
)

type memStore struct {
	records map[string]*models.UploadRecord
	order   []string
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*models.UploadRecord{}}
}

func (s *memStore) CreateUpload(_ context.Context, rec *models.UploadRecord) error {
	if rec.UploadID == "" {
		rec.UploadID = models.NewUploadID()
	}
	rec.ProcessingStatus = models.StatusProcessing
	clone := *rec
	s.records[rec.UploadID] = &clone
	s.order = append(s.order, rec.UploadID)
	return nil
}

func (s *memStore) UpdateObjectURL(_ context.Context, uploadID, url string) error {
	rec, ok := s.records[uploadID]
	if !ok {
		return fmt.Errorf("%w: upload %s", models.ErrNotFound, uploadID)
	}
	rec.ObjectURL = url
	return nil
}

func (s *memStore) AttachResults(_ context.Context, uploadID string, doc *models.AnalysisDocument) (models.UploadRecord, error) {
	rec, ok := s.records[uploadID]
	if !ok {
		return models.UploadRecord{}, fmt.Errorf("%w: upload %s", models.ErrNotFound, uploadID)
	}
	if doc.IsEmpty() {
		return models.UploadRecord{}, fmt.Errorf("%w: empty results document", models.ErrValidation)
	}
	rec.ProcessingStatus = models.StatusCompleted
	rec.AnalysisResults = doc
	return *rec, nil
}

func (s *memStore) MarkError(_ context.Context, uploadID, reason string) (models.UploadRecord, error) {
	rec, ok := s.records[uploadID]
	if !ok {
		return models.UploadRecord{}, fmt.Errorf("%w: upload %s", models.ErrNotFound, uploadID)
	}
	rec.ProcessingStatus = models.StatusError
	rec.ErrorMessage = reason
	return *rec, nil
}

func (s *memStore) GetUpload(_ context.Context, uploadID string) (models.UploadRecord, error) {
	rec, ok := s.records[uploadID]
	if !ok {
		return models.UploadRecord{}, fmt.Errorf("%w: upload %s", models.ErrNotFound, uploadID)
	}
	return *rec, nil
}

func (s *memStore) ListUploads(_ context.Context, contactID string, limit, offset int) ([]models.UploadRecord, int64, error) {
	var all []models.UploadRecord
	for _, id := range s.order {
		if rec := s.records[id]; rec.ContactID == contactID {
			all = append(all, *rec)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []models.UploadRecord{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

type stubIssuer struct {
	err error
}

func (i *stubIssuer) IssueWriteCredential(_ context.Context, fileName, contentType string) (models.WriteCredential, error) {
	if i.err != nil {
		return models.WriteCredential{}, i.err
	}
	return models.WriteCredential{
		URL:         "http://minio:9000/scans/" + fileName + "?X-Amz-Signature=test",
		FileName:    fileName,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(15 * time.Minute),
	}, nil
}

type stubInference struct {
	detections []services.Detection
	err        error
}

func (g *stubInference) Predict(_ context.Context, _ []byte, _ services.InferenceParams) ([]services.Detection, error) {
	return g.detections, g.err
}

type stubObjects struct{}

func (stubObjects) UploadObject(_ context.Context, _ io.Reader, _ int64, _, _ string) error {
	return nil
}

func (stubObjects) ObjectURL(objectName string) string {
	return "http://minio:9000/scans/" + objectName
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.POST("/upload-url", h.IssueUploadURL)
	api.POST("/analyze", h.Analyze)
	api.POST("/store-analysis", h.StoreAnalysis)
	api.GET("/uploads", h.List)
	api.GET("/uploads/:id", h.Get)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	parsed := map[string]interface{}{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("response not JSON: %v: %s", err, w.Body.String())
		}
	}
	return w, parsed
}

func TestIssueUploadURL(t *testing.T) {
	h := NewHandler(&stubIssuer{}, newMemStore(), nil)
	r := newTestRouter(h)

	w, resp := doJSON(t, r, http.MethodPost, "/api/upload-url",
		`{"fileName": "scalp.jpg", "contentType": "image/jpeg"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if resp["fileName"] != "scalp.jpg" || resp["contentType"] != "image/jpeg" {
		t.Errorf("response = %v", resp)
	}
	if u, _ := resp["url"].(string); !strings.Contains(u, "scalp.jpg") {
		t.Errorf("url = %v", resp["url"])
	}
	if resp["expiresAt"] == nil {
		t.Error("expiresAt missing")
	}
}

func TestIssueUploadURLValidation(t *testing.T) {
	h := NewHandler(&stubIssuer{}, newMemStore(), nil)
	r := newTestRouter(h)

	for _, body := range []string{
		`{"contentType": "image/jpeg"}`,
		`{"fileName": "scalp.jpg"}`,
		`{}`,
		`not json`,
	} {
		w, _ := doJSON(t, r, http.MethodPost, "/api/upload-url", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestIssueUploadURLBackendError(t *testing.T) {
	issuer := &stubIssuer{err: fmt.Errorf("%w: presign failed", models.ErrBackend)}
	r := newTestRouter(NewHandler(issuer, newMemStore(), nil))

	w, _ := doJSON(t, r, http.MethodPost, "/api/upload-url",
		`{"fileName": "scalp.jpg", "contentType": "image/jpeg"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestStoreAnalysis(t *testing.T) {
	store := newMemStore()
	h := NewHandler(&stubIssuer{}, store, &services.IngestionCoordinator{Store: store})
	r := newTestRouter(h)

	w, resp := doJSON(t, r, http.MethodPost, "/api/store-analysis", `{
		"subject_id": "contact-7",
		"analysis_data": {
			"filename": "scalp.png",
			"density_results": {"total_detections": 5}
		}
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if resp["status"] != "success" {
		t.Errorf("status field = %v", resp["status"])
	}

	uploadID, _ := resp["upload_id"].(string)
	rec, ok := store.records[uploadID]
	if !ok {
		t.Fatalf("record %q not persisted", uploadID)
	}
	if rec.ProcessingStatus != models.StatusCompleted {
		t.Errorf("record status = %s", rec.ProcessingStatus)
	}
	if rec.ContactID != "contact-7" || rec.Filename != "scalp.png" {
		t.Errorf("record = %+v", rec)
	}
}

func TestStoreAnalysisValidation(t *testing.T) {
	store := newMemStore()
	h := NewHandler(&stubIssuer{}, store, &services.IngestionCoordinator{Store: store})
	r := newTestRouter(h)

	cases := []string{
		`{"analysis_data": {"density_results": {}}}`,
		`{"subject_id": "contact-7"}`,
		`{"subject_id": "contact-7", "analysis_data": "not an object"}`,
		// metadata only, no result fragments
		`{"subject_id": "contact-7", "analysis_data": {"filename": "a.jpg"}}`,
		`garbage`,
	}
	for _, body := range cases {
		w, _ := doJSON(t, r, http.MethodPost, "/api/store-analysis", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
	// Validation rejections must leave no trace.
	if len(store.order) != 0 {
		t.Errorf("rejected requests created %d records", len(store.order))
	}
}

func TestAnalyzeMultipart(t *testing.T) {
	store := newMemStore()
	coordinator := &services.IngestionCoordinator{
		Store:   store,
		Objects: stubObjects{},
		Inference: &stubInference{detections: []services.Detection{
			{DisplayName: "thick", Confidence: 0.9, BBox: []float64{0, 0, 1, 1}},
			{DisplayName: "weak", Confidence: 0.7, BBox: []float64{0, 0, 1, 1}},
		}},
	}
	r := newTestRouter(NewHandler(&stubIssuer{}, store, coordinator))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "scalp.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("jpeg bytes"))
	mw.WriteField("subject_id", "contact-3")
	mw.WriteField("confidenceThreshold", "0.4")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success          bool                       `json:"success"`
		UploadID         string                     `json:"upload_id"`
		SubjectID        string                     `json:"subject_id"`
		Predictions      []map[string]interface{}   `json:"predictions"`
		ClassCounts      map[string]float64         `json:"class_counts"`
		TotalPredictions int                        `json:"total_predictions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.SubjectID != "contact-3" || resp.TotalPredictions != 2 {
		t.Errorf("response = %+v", resp)
	}
	if resp.ClassCounts["thick"] != 1 {
		t.Errorf("class counts = %v", resp.ClassCounts)
	}
	if rec := store.records[resp.UploadID]; rec == nil || rec.ProcessingStatus != models.StatusCompleted {
		t.Errorf("record not completed: %+v", rec)
	}

	// The stored image's reference must survive into the read path.
	w2, listResp := doJSON(t, r, http.MethodGet, "/api/uploads/"+resp.UploadID, "")
	if w2.Code != http.StatusOK {
		t.Fatalf("get status = %d", w2.Code)
	}
	upload := listResp["upload"].(map[string]interface{})
	if u, _ := upload["url"].(string); !strings.Contains(u, resp.UploadID) {
		t.Errorf("record url = %q, want the stored object's reference", upload["url"])
	}
}

func TestAnalyzeMissingImage(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(NewHandler(&stubIssuer{}, store, &services.IngestionCoordinator{Store: store}))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("subject_id", "contact-3")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(store.order) != 0 {
		t.Errorf("created %d records", len(store.order))
	}
}

func TestAnalyzeInferenceFailure(t *testing.T) {
	store := newMemStore()
	coordinator := &services.IngestionCoordinator{
		Store:     store,
		Inference: &stubInference{err: fmt.Errorf("%w: predict endpoint returned 401", models.ErrUpstreamAuth)},
	}
	r := newTestRouter(NewHandler(&stubIssuer{}, store, coordinator))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "scalp.jpg")
	part.Write([]byte("jpeg bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(store.order) != 1 {
		t.Fatalf("created %d records, want 1", len(store.order))
	}
	if rec := store.records[store.order[0]]; rec.ProcessingStatus != models.StatusError {
		t.Errorf("record status = %s, want error", rec.ProcessingStatus)
	}
}

func TestListUploads(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 3; i++ {
		store.CreateUpload(context.Background(), &models.UploadRecord{ContactID: "contact-5", Filename: fmt.Sprintf("scan-%d.jpg", i)})
	}
	store.CreateUpload(context.Background(), &models.UploadRecord{ContactID: "someone-else"})

	r := newTestRouter(NewHandler(&stubIssuer{}, store, nil))

	w, resp := doJSON(t, r, http.MethodGet, "/api/uploads?subject_id=contact-5&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if resp["total_count"].(float64) != 3 {
		t.Errorf("total_count = %v", resp["total_count"])
	}
	if uploads := resp["uploads"].([]interface{}); len(uploads) != 2 {
		t.Errorf("page size = %d, want 2", len(uploads))
	}

	// Out-of-range limits are clamped, not rejected.
	w, resp = doJSON(t, r, http.MethodGet, "/api/uploads?subject_id=contact-5&limit=5000&offset=-3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["limit"].(float64) != 100 || resp["offset"].(float64) != 0 {
		t.Errorf("limit/offset not clamped: %v/%v", resp["limit"], resp["offset"])
	}

	// Unknown subject: empty page, not an error.
	w, resp = doJSON(t, r, http.MethodGet, "/api/uploads?subject_id=nobody", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["total_count"].(float64) != 0 {
		t.Errorf("total_count = %v, want 0", resp["total_count"])
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/uploads", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing subject_id: status = %d, want 400", w.Code)
	}
}

func TestGetUpload(t *testing.T) {
	store := newMemStore()
	rec := &models.UploadRecord{ContactID: "contact-5", Filename: "scan.jpg"}
	store.CreateUpload(context.Background(), rec)

	r := newTestRouter(NewHandler(&stubIssuer{}, store, nil))

	w, resp := doJSON(t, r, http.MethodGet, "/api/uploads/"+rec.UploadID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	upload := resp["upload"].(map[string]interface{})
	if upload["upload_id"] != rec.UploadID || upload["filename"] != "scan.jpg" {
		t.Errorf("upload = %v", upload)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/uploads/upload-missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
