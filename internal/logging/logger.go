package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a production ready structured logger.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// WithOperation enriches the logger with operation and attempt identifiers.
func WithOperation(logger *zap.Logger, operation, attemptID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if attemptID != "" {
		fields = append(fields, zap.String("attempt_id", attemptID))
	}
	return logger.With(fields...)
}

// DecisionFields renders the standard fields logged with every verification
// decision, so accepted and rejected attempts are searchable the same way.
func DecisionFields(modality string, accepted bool, reason string) []zap.Field {
	fields := []zap.Field{
		zap.String("modality", modality),
		zap.Bool("accepted", accepted),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	return fields
}
