package repository

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bioverify/internal/biometric"
)

// VerificationAttempt is one append-only ledger row. Every attempt is
// recorded with its full metric breakdown so audit never depends on the
// boolean alone.
type VerificationAttempt struct {
	ID        uint      `gorm:"primaryKey"`
	AttemptID string    `gorm:"column:attempt_id;uniqueIndex;size:64"`
	UserID    string    `gorm:"column:user_id;size:64;index"`
	Modality  string    `gorm:"column:modality;size:16"`
	Accepted  bool      `gorm:"column:accepted"`
	Reason    string    `gorm:"column:reason;size:64"`
	Scores    string    `gorm:"column:scores;type:text"`
	Quality   string    `gorm:"column:quality;type:text"`
	ElapsedMs float64   `gorm:"column:elapsed_ms"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (VerificationAttempt) TableName() string {
	return "verification_attempts"
}

// MetricScores deserializes the stored metric breakdown.
func (a *VerificationAttempt) MetricScores() ([]biometric.MetricScore, error) {
	if a.Scores == "" {
		return nil, nil
	}
	var scores []biometric.MetricScore
	if err := json.Unmarshal([]byte(a.Scores), &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// MetricsAggregation holds raw aggregates over the ledger.
type MetricsAggregation struct {
	TotalCount       int64
	AcceptedCount    int64
	AverageElapsedMs float64
	ByModality       map[string]ModalityAggregation
}

// ModalityAggregation is the per-modality slice of the aggregates.
type ModalityAggregation struct {
	TotalCount    int64
	AcceptedCount int64
}

// AttemptRepository provides the append-only attempt ledger.
type AttemptRepository struct {
	db *gorm.DB
	retrier
}

// NewAttemptRepository creates a new repository instance.
func NewAttemptRepository(db *gorm.DB, logger *zap.Logger) *AttemptRepository {
	return &AttemptRepository{db: db, retrier: newRetrier(logger.Named("attempt_repository"))}
}

// AutoMigrate ensures the schema is available.
func (r *AttemptRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&VerificationAttempt{})
}

// Record appends one attempt to the ledger.
func (r *AttemptRepository) Record(ctx context.Context, attempt *VerificationAttempt) error {
	return r.executeWithRetry(ctx, "attempts.record", attempt.AttemptID, func() error {
		return r.db.WithContext(ctx).Create(attempt).Error
	})
}

// FindByAttemptIDAndUser retrieves a ledger row scoped to its owner.
func (r *AttemptRepository) FindByAttemptIDAndUser(ctx context.Context, attemptID, userID string) (*VerificationAttempt, error) {
	var attempt VerificationAttempt
	err := r.executeWithRetry(ctx, "attempts.find", attemptID, func() error {
		return r.db.WithContext(ctx).
			First(&attempt, "attempt_id = ? AND user_id = ?", attemptID, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// AggregateMetrics computes ledger-wide aggregates for the analytics
// endpoint.
func (r *AttemptRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	aggregation := &MetricsAggregation{ByModality: map[string]ModalityAggregation{}}

	err := r.executeWithRetry(ctx, "attempts.aggregate", "", func() error {
		var overall struct {
			Total    int64
			Accepted int64
			Elapsed  float64
		}
		if err := r.db.WithContext(ctx).Model(&VerificationAttempt{}).
			Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE accepted) AS accepted, COALESCE(AVG(elapsed_ms), 0) AS elapsed").
			Scan(&overall).Error; err != nil {
			return err
		}

		aggregation.TotalCount = overall.Total
		aggregation.AcceptedCount = overall.Accepted
		aggregation.AverageElapsedMs = overall.Elapsed

		var rows []struct {
			Modality string
			Total    int64
			Accepted int64
		}
		if err := r.db.WithContext(ctx).Model(&VerificationAttempt{}).
			Select("modality, COUNT(*) AS total, COUNT(*) FILTER (WHERE accepted) AS accepted").
			Group("modality").
			Scan(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			aggregation.ByModality[row.Modality] = ModalityAggregation{
				TotalCount:    row.Total,
				AcceptedCount: row.Accepted,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aggregation, nil
}
