package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/configuration"
	"github.com/HairScan-Mara/Scan-Service/internal/models"
)

// Detection is one prediction from the visual-inference model.
type Detection struct {
	DisplayName string    `json:"displayName"`
	Confidence  float64   `json:"confidence"`
	BBox        []float64 `json:"bbox"`
}

// InferenceParams are the tunables forwarded to the model.
type InferenceParams struct {
	ConfidenceThreshold float64
	IOUThreshold        float64
	MaxPredictions      int
}

// InferenceGateway is the opaque remote detection model. Implementations
// must treat failures as terminal for the call; retrying is the caller's
// decision (and the coordinator never retries).
type InferenceGateway interface {
	Predict(ctx context.Context, image []byte, params InferenceParams) ([]Detection, error)
}

// NewInferenceGateway picks the remote gateway when a predict endpoint is
// configured, otherwise the deterministic mock.
func NewInferenceGateway(cfg configuration.InferenceConfig) InferenceGateway {
	if cfg.PredictURL == "" {
		return &MockInferenceGateway{}
	}
	return &HTTPInferenceGateway{
		PredictURL: cfg.PredictURL,
		Client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// HTTPInferenceGateway calls a Vertex-style predict endpoint.
type HTTPInferenceGateway struct {
	PredictURL string
	Client     *http.Client
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Image predictImage `json:"image"`
}

type predictImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type predictParameters struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	IOUThreshold        float64 `json:"iouThreshold,omitempty"`
	MaxPredictions      int     `json:"maxPredictions"`
}

type predictResponse struct {
	Predictions [][]Detection `json:"predictions"`
}

func (g *HTTPInferenceGateway) Predict(ctx context.Context, image []byte, params InferenceParams) ([]Detection, error) {
	reqBody := predictRequest{
		Instances: []predictInstance{{
			Image: predictImage{BytesBase64Encoded: base64.StdEncoding.EncodeToString(image)},
		}},
		Parameters: predictParameters{
			ConfidenceThreshold: params.ConfidenceThreshold,
			IOUThreshold:        params.IOUThreshold,
			MaxPredictions:      params.MaxPredictions,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: encode predict request: %v", models.ErrBackend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.PredictURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build predict request: %v", models.ErrBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: predict call failed: %v", models.ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: predict endpoint returned %d", models.ErrUpstreamAuth, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: predict endpoint returned %d: %s", models.ErrBackend, resp.StatusCode, body)
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode predict response: %v", models.ErrBackend, err)
	}
	if len(parsed.Predictions) == 0 {
		return nil, nil
	}
	return parsed.Predictions[0], nil
}

// MockInferenceGateway serves fixed detections for local development when
// no predict endpoint is configured. It is never used as a fallback for a
// failing remote call.
type MockInferenceGateway struct{}

func (g *MockInferenceGateway) Predict(_ context.Context, _ []byte, params InferenceParams) ([]Detection, error) {
	detections := []Detection{
		{DisplayName: "thick", Confidence: 0.95, BBox: []float64{0.1, 0.1, 0.3, 0.8}},
		{DisplayName: "medium", Confidence: 0.87, BBox: []float64{0.4, 0.6, 0.9, 0.9}},
		{DisplayName: "weak", Confidence: 0.78, BBox: []float64{0.6, 0.2, 0.8, 0.5}},
	}
	out := detections[:0:0]
	for _, d := range detections {
		if d.Confidence < params.ConfidenceThreshold {
			continue
		}
		out = append(out, d)
		if params.MaxPredictions > 0 && len(out) >= params.MaxPredictions {
			break
		}
	}
	// Simulate a small processing delay so callers exercise timeouts
	time.Sleep(10 * time.Millisecond)
	return out, nil
}
