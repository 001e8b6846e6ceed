package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/logging"
)

// HTTPClient talks to the extractor sidecar over JSON.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient constructs a client for the extractor service at baseURL.
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Named("extractor_client"),
	}
}

type extractRequest struct {
	Modality string `json:"modality"`
	Image    string `json:"image"` // base64-encoded capture bytes
}

type extractResponse struct {
	Vector    []float32 `json:"vector"`
	Dimension int       `json:"dimension"`
	Error     string    `json:"error,omitempty"`
}

// Extract implements Client.
func (c *HTTPClient) Extract(ctx context.Context, imageBytes []byte, modality biometric.Modality) (biometric.FeatureVector, error) {
	payload, err := json.Marshal(extractRequest{
		Modality: string(modality),
		Image:    base64.StdEncoding.EncodeToString(imageBytes),
	})
	if err != nil {
		return nil, &biometric.ExtractionError{Modality: modality, Err: err}
	}

	url := fmt.Sprintf("%s/api/v1/extract", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &biometric.ExtractionError{Modality: modality, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := &biometric.ExtractionError{Modality: modality, Err: err}
		c.logger.Error("extractor call failed", zap.Error(logging.NewOperationError("extractor.extract", "", wrapped)))
		return nil, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("extractor returned status %d: %s", resp.StatusCode, string(body))
		c.logger.Error("extractor call failed", zap.Int("status", resp.StatusCode), zap.String("modality", string(modality)))
		return nil, &biometric.ExtractionError{Modality: modality, Err: err}
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &biometric.ExtractionError{Modality: modality, Err: err}
	}
	if decoded.Error != "" {
		return nil, &biometric.ExtractionError{Modality: modality, Err: fmt.Errorf("%s", decoded.Error)}
	}
	if len(decoded.Vector) == 0 {
		return nil, &biometric.ExtractionError{Modality: modality, Err: fmt.Errorf("empty vector in extractor response")}
	}
	if decoded.Dimension != 0 && decoded.Dimension != len(decoded.Vector) {
		return nil, &biometric.ExtractionError{
			Modality: modality,
			Err:      fmt.Errorf("extractor reported dimension %d but returned %d values", decoded.Dimension, len(decoded.Vector)),
		}
	}

	return biometric.FeatureVector(decoded.Vector), nil
}

// HealthCheck implements Client.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("extractor health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extractor health check returned status %d", resp.StatusCode)
	}
	return nil
}
