package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/logging"
	"github.com/example/bioverify/internal/repository"
)

// EnrollmentOutcome is the result of one enrollment request. A quality
// rejection leaves Template nil and carries the report; registration flows
// show the failed checks to the user and allow another capture.
type EnrollmentOutcome struct {
	Template *repository.EnrollmentTemplate
	Quality  *biometric.QualityReport
}

// Enrolled reports whether a template was stored.
func (o *EnrollmentOutcome) Enrolled() bool {
	return o != nil && o.Template != nil
}

// Enroll validates the capture, extracts its feature vector, and replaces
// the active template for (user, modality). Enrollment below the
// minimum-methods floor is allowed: registration builds up modalities
// incrementally, and only deletion enforces the floor.
func (uc *VerificationUseCase) Enroll(ctx context.Context, userID string, modality biometric.Modality, imageBytes []byte) (*EnrollmentOutcome, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.enroll", "")

	modalityCfg, err := uc.cfg.Modality(modality)
	if err != nil {
		return nil, err
	}

	report, err := uc.gate.Assess(imageBytes, modality)
	if err != nil {
		return nil, err
	}
	if !report.Passed {
		opLogger.Info("enrollment capture rejected by quality gate",
			zap.String("modality", string(modality)),
			zap.Strings("failed_checks", report.FailedChecks))
		return &EnrollmentOutcome{Quality: report}, nil
	}

	vector, err := uc.extractor.Extract(ctx, imageBytes, modality)
	if err != nil {
		return nil, err
	}
	if vector.Dimension() != modalityCfg.Dimension {
		return nil, &biometric.ExtractionError{
			Modality: modality,
			Err:      fmt.Errorf("extractor returned %d dimensions, configured %d", vector.Dimension(), modalityCfg.Dimension),
		}
	}

	template, err := uc.templates.ReplaceActiveTemplate(ctx, userID, modality, vector)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.store_template", "", err)
		opLogger.Error("failed to store enrollment template", zap.Error(wrapped))
		return nil, wrapped
	}

	opLogger.Info("enrollment template stored",
		zap.String("modality", string(modality)),
		zap.String("template_id", template.ID))

	return &EnrollmentOutcome{Template: template, Quality: report}, nil
}

// DeleteTemplate deactivates the user's active template for a modality,
// refusing with MinimumMethodsError when the deletion would leave fewer
// active modalities than the configured floor.
func (uc *VerificationUseCase) DeleteTemplate(ctx context.Context, userID string, modality biometric.Modality) error {
	return uc.templates.DeactivateTemplate(ctx, userID, modality, uc.cfg.MinBiometricMethods)
}

// ListTemplates returns the user's active enrollments.
func (uc *VerificationUseCase) ListTemplates(ctx context.Context, userID string) ([]*repository.EnrollmentTemplate, error) {
	return uc.templates.ListActiveTemplates(ctx, userID)
}
