package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/bioverify/internal/auth"
	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/repository"
	"github.com/example/bioverify/internal/usecase"
)

// MaxUploadSize bounds a single capture upload.
const MaxUploadSize = 8 << 20 // 8 MiB

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.VerificationUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(authMiddleware)

	api.POST("/enroll", func(c *gin.Context) { handleEnroll(c, uc) })
	api.POST("/verify", func(c *gin.Context) { handleVerify(c, uc) })
	api.GET("/templates", func(c *gin.Context) { handleListTemplates(c, uc) })
	api.DELETE("/templates/:modality", func(c *gin.Context) { handleDeleteTemplate(c, uc) })
	api.GET("/attempts/:id", func(c *gin.Context) { handleGetAttempt(c, uc) })
	api.GET("/metrics", func(c *gin.Context) { handleMetrics(c, uc) })
}

func handleEnroll(c *gin.Context, uc *usecase.VerificationUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	modality, ok := parseModalityForm(c)
	if !ok {
		return
	}

	data, ok := readCapture(c)
	if !ok {
		return
	}

	outcome, err := uc.Enroll(c.Request.Context(), userID, modality, data)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if !outcome.Enrolled() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"enrolled": false,
			"quality":  outcome.Quality,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"enrolled":    true,
		"template_id": outcome.Template.ID,
		"modality":    outcome.Template.Modality,
		"dimension":   outcome.Template.Dimension,
		"quality":     outcome.Quality,
		"created_at":  outcome.Template.CreatedAt,
	})
}

func handleVerify(c *gin.Context, uc *usecase.VerificationUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	modality, ok := parseModalityForm(c)
	if !ok {
		return
	}

	data, ok := readCapture(c)
	if !ok {
		return
	}

	attemptID, result, err := uc.Verify(c.Request.Context(), userID, modality, data)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id":     attemptID,
		"accepted":       result.Accepted,
		"reason":         result.Reason,
		"failed_metrics": result.FailedMetrics,
		"scores":         result.Scores,
		"quality":        result.Quality,
		"timestamp":      result.Timestamp,
	})
}

func handleListTemplates(c *gin.Context, uc *usecase.VerificationUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	templates, err := uc.ListTemplates(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list templates"})
		return
	}

	items := make([]gin.H, 0, len(templates))
	for _, t := range templates {
		items = append(items, gin.H{
			"template_id": t.ID,
			"modality":    t.Modality,
			"dimension":   t.Dimension,
			"created_at":  t.CreatedAt,
			"updated_at":  t.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"templates": items})
}

func handleDeleteTemplate(c *gin.Context, uc *usecase.VerificationUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	modality, err := biometric.ParseModality(c.Param("modality"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := uc.DeleteTemplate(c.Request.Context(), userID, modality); err != nil {
		var minErr *biometric.MinimumMethodsError
		switch {
		case errors.As(err, &minErr):
			c.JSON(http.StatusConflict, gin.H{
				"error":   minErr.Error(),
				"minimum": minErr.Minimum,
			})
		case errors.Is(err, repository.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active template for modality"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete template"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

func handleGetAttempt(c *gin.Context, uc *usecase.VerificationUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	attemptID := c.Param("id")
	attempt, err := uc.GetAttempt(c.Request.Context(), userID, attemptID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
		return
	}

	scores, err := attempt.MetricScores()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt attempt record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id": attempt.AttemptID,
		"user_id":    attempt.UserID,
		"modality":   attempt.Modality,
		"accepted":   attempt.Accepted,
		"reason":     attempt.Reason,
		"scores":     scores,
		"created_at": attempt.CreatedAt,
	})
}

func handleMetrics(c *gin.Context, uc *usecase.VerificationUseCase) {
	summary, err := uc.GetMetricsSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseModalityForm(c *gin.Context) (biometric.Modality, bool) {
	modality, err := biometric.ParseModality(c.PostForm("modality"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return modality, true
}

// readCapture reads the uploaded image with size and content-type gates.
func readCapture(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return nil, false
	}

	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return nil, false
	}
	if !acceptedContentType(file) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type"})
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return nil, false
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return nil, false
	}

	return data, true
}

func acceptedContentType(file *multipart.FileHeader) bool {
	return strings.HasPrefix(file.Header.Get("Content-Type"), "image/")
}

// respondDomainError maps core error types to HTTP statuses, keeping the
// distinguishing reason visible to the caller.
func respondDomainError(c *gin.Context, err error) {
	var invalid *biometric.InvalidImageError
	var extraction *biometric.ExtractionError
	var mismatch *biometric.DimensionMismatchError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "image could not be decoded"})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusConflict, gin.H{
			"error":                  mismatch.Error(),
			"re_enrollment_required": true,
		})
	case errors.As(err, &extraction):
		c.JSON(http.StatusBadGateway, gin.H{"error": "feature extraction failed"})
	default:
		// Unexpected failures are logged with full detail where they
		// originate; the response body stays opaque.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
