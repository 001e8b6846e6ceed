package extractor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/example/bioverify/internal/biometric"
)

func TestExtractDecodesVector(t *testing.T) {
	var gotRequest extractRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(extractResponse{Vector: []float32{0.6, 0.8}, Dimension: 2}) //nolint:errcheck
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	vector, err := client.Extract(context.Background(), []byte("capture"), biometric.ModalityFace)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if vector.Dimension() != 2 {
		t.Fatalf("expected 2-dimensional vector, got %d", vector.Dimension())
	}
	if gotRequest.Modality != "face" {
		t.Fatalf("expected face modality in request, got %s", gotRequest.Modality)
	}
	decoded, err := base64.StdEncoding.DecodeString(gotRequest.Image)
	if err != nil || string(decoded) != "capture" {
		t.Fatalf("expected base64 capture bytes, got %q (err %v)", gotRequest.Image, err)
	}
}

func TestExtractWrapsServiceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	_, err := client.Extract(context.Background(), []byte("capture"), biometric.ModalityFingerprint)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var extractionErr *biometric.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %T", err)
	}
	if extractionErr.Modality != biometric.ModalityFingerprint {
		t.Fatalf("unexpected modality: %s", extractionErr.Modality)
	}
}

func TestExtractRejectsInconsistentDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Vector: []float32{1, 0}, Dimension: 512}) //nolint:errcheck
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	if _, err := client.Extract(context.Background(), []byte("capture"), biometric.ModalityFace); err == nil {
		t.Fatal("expected error for inconsistent dimension, got nil")
	}
}

func TestExtractRejectsEmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{}) //nolint:errcheck
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	if _, err := client.Extract(context.Background(), []byte("capture"), biometric.ModalityFace); err == nil {
		t.Fatal("expected error for empty vector, got nil")
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy, got error: %v", err)
	}
}
