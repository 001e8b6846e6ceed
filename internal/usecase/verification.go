package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/config"
	"github.com/example/bioverify/internal/extractor"
	"github.com/example/bioverify/internal/logging"
	"github.com/example/bioverify/internal/policy"
	"github.com/example/bioverify/internal/repository"
)

// TemplateStore defines the enrollment template operations needed by the
// use cases.
type TemplateStore interface {
	GetActiveTemplate(ctx context.Context, userID string, modality biometric.Modality) (*repository.EnrollmentTemplate, error)
	ReplaceActiveTemplate(ctx context.Context, userID string, modality biometric.Modality, vector biometric.FeatureVector) (*repository.EnrollmentTemplate, error)
	DeactivateTemplate(ctx context.Context, userID string, modality biometric.Modality, minActiveMethods int) error
	ListActiveTemplates(ctx context.Context, userID string) ([]*repository.EnrollmentTemplate, error)
}

// AttemptLedger defines the append-only attempt record operations.
type AttemptLedger interface {
	Record(ctx context.Context, attempt *repository.VerificationAttempt) error
	FindByAttemptIDAndUser(ctx context.Context, attemptID, userID string) (*repository.VerificationAttempt, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// QualityGate validates a capture before comparison.
type QualityGate interface {
	Assess(imageBytes []byte, modality biometric.Modality) (*biometric.QualityReport, error)
}

// SimilarityEngine computes the metric breakdown for a vector pair.
type SimilarityEngine interface {
	Compare(candidate, enrolled biometric.FeatureVector) ([]biometric.MetricScore, error)
}

// VerificationUseCase orchestrates the capture-to-decision pipeline:
// quality gate, feature extraction, similarity comparison, policy
// decision, ledger append, result caching.
type VerificationUseCase struct {
	templates TemplateStore
	attempts  AttemptLedger
	cache     Cache
	gate      QualityGate
	engine    SimilarityEngine
	extractor extractor.Client
	cfg       *config.Config
	logger    *zap.Logger

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type cachedAttempt struct {
	AttemptID string                  `json:"attempt_id"`
	UserID    string                  `json:"user_id"`
	Modality  string                  `json:"modality"`
	Accepted  bool                    `json:"accepted"`
	Reason    string                  `json:"reason,omitempty"`
	Scores    []biometric.MetricScore `json:"scores,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(
	templates TemplateStore,
	attempts AttemptLedger,
	cache Cache,
	gate QualityGate,
	engine SimilarityEngine,
	extractorClient extractor.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *VerificationUseCase {
	return &VerificationUseCase{
		templates:      templates,
		attempts:       attempts,
		cache:          cache,
		gate:           gate,
		engine:         engine,
		extractor:      extractorClient,
		cfg:            cfg,
		logger:         logger.Named("verification_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Verify runs one verification attempt end to end. Expected rejections
// (bad image, quality failure, no template, thresholds) come back as a
// rejected VerificationResult with a nil error. Extraction failures and
// template dimension mismatches are faults: the attempt is still ledgered,
// and the error is returned so the caller can distinguish "try again" from
// "re-enroll" or "operator action".
func (uc *VerificationUseCase) Verify(ctx context.Context, userID string, modality biometric.Modality, imageBytes []byte) (string, *biometric.VerificationResult, error) {
	attemptID := uuid.NewString()
	start := time.Now()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify", attemptID)

	modalityCfg, err := uc.cfg.Modality(modality)
	if err != nil {
		return "", nil, err
	}
	// One threshold snapshot per attempt; mid-decision config changes
	// cannot split a breakdown across two tables.
	thresholds := modalityCfg.Thresholds

	cacheKey := attemptCacheKey(attemptID)
	if err := uc.withRedisRetry(ctx, attemptID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, "processing", time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return "", nil, err
	}

	report, err := uc.gate.Assess(imageBytes, modality)
	if err != nil {
		var invalid *biometric.InvalidImageError
		if !errors.As(err, &invalid) {
			return "", nil, logging.NewOperationError("usecase.quality_gate", attemptID, err)
		}
		result := policy.Rejected(modality, biometric.ReasonInvalidImage, nil)
		return attemptID, result, uc.finishAttempt(ctx, opLogger, attemptID, userID, result, start)
	}

	if !report.Passed {
		// Fail fast: a quality-rejected capture never reaches the
		// extractor or the similarity engine.
		result := policy.Rejected(modality, biometric.ReasonQualityFailure, report)
		return attemptID, result, uc.finishAttempt(ctx, opLogger, attemptID, userID, result, start)
	}

	candidate, err := uc.extractor.Extract(ctx, imageBytes, modality)
	if err != nil {
		result := policy.Rejected(modality, biometric.ReasonExtractionError, report)
		if ledgerErr := uc.finishAttempt(ctx, opLogger, attemptID, userID, result, start); ledgerErr != nil {
			opLogger.Error("failed to ledger extraction fault", zap.Error(ledgerErr))
		}
		return attemptID, nil, err
	}
	if candidate.Dimension() != modalityCfg.Dimension {
		err := &biometric.ExtractionError{
			Modality: modality,
			Err:      fmt.Errorf("extractor returned %d dimensions, configured %d", candidate.Dimension(), modalityCfg.Dimension),
		}
		result := policy.Rejected(modality, biometric.ReasonExtractionError, report)
		if ledgerErr := uc.finishAttempt(ctx, opLogger, attemptID, userID, result, start); ledgerErr != nil {
			opLogger.Error("failed to ledger extraction fault", zap.Error(ledgerErr))
		}
		return attemptID, nil, err
	}

	template, err := uc.templates.GetActiveTemplate(ctx, userID, modality)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveTemplate) {
			result := policy.Rejected(modality, biometric.ReasonNoEnrolledTemplate, report)
			return attemptID, result, uc.finishAttempt(ctx, opLogger, attemptID, userID, result, start)
		}
		return "", nil, err
	}

	enrolled, err := template.Vector()
	if err != nil {
		return "", nil, logging.NewOperationError("usecase.load_template", attemptID, err)
	}

	scores, err := uc.engine.Compare(candidate, enrolled)
	if err != nil {
		var mismatch *biometric.DimensionMismatchError
		if errors.As(err, &mismatch) {
			// Extractor model changed since enrollment. Ledger the
			// attempt and surface the error distinctly so the caller
			// prompts re-enrollment instead of retrying forever.
			result := policy.Rejected(modality, biometric.ReasonDimensionMismatch, report)
			if ledgerErr := uc.finishAttempt(ctx, opLogger, attemptID, userID, result, start); ledgerErr != nil {
				opLogger.Error("failed to ledger dimension mismatch", zap.Error(ledgerErr))
			}
			return attemptID, nil, err
		}
		return "", nil, err
	}

	result, err := policy.Decide(scores, modality, thresholds, report)
	if err != nil {
		return "", nil, logging.NewOperationError("usecase.decide", attemptID, err)
	}

	opLogger.Info("verification decision rendered",
		logging.DecisionFields(string(modality), result.Accepted, result.Reason)...)

	return attemptID, result, uc.finishAttempt(ctx, opLogger, attemptID, userID, result, start)
}

// finishAttempt appends the ledger row and caches the outcome.
func (uc *VerificationUseCase) finishAttempt(ctx context.Context, opLogger *zap.Logger, attemptID, userID string, result *biometric.VerificationResult, start time.Time) error {
	attempt, err := buildAttemptRow(attemptID, userID, result, time.Since(start))
	if err != nil {
		opLogger.Error("failed to serialize attempt", zap.Error(err))
		return err
	}

	if err := uc.attempts.Record(ctx, attempt); err != nil {
		wrapped := logging.NewOperationError("usecase.record_attempt", attemptID, err)
		opLogger.Error("failed to persist attempt", zap.Error(wrapped))
		return wrapped
	}

	cached := cachedAttempt{
		AttemptID: attemptID,
		UserID:    userID,
		Modality:  string(result.Modality),
		Accepted:  result.Accepted,
		Reason:    result.Reason,
		Scores:    result.Scores,
		CreatedAt: attempt.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize cached attempt", zap.Error(err))
		return err
	}

	if err := uc.withRedisRetry(ctx, attemptID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, attemptCacheKey(attemptID), string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache attempt result", zap.Error(err))
		return err
	}

	return nil
}

func buildAttemptRow(attemptID, userID string, result *biometric.VerificationResult, elapsed time.Duration) (*repository.VerificationAttempt, error) {
	attempt := &repository.VerificationAttempt{
		AttemptID: attemptID,
		UserID:    userID,
		Modality:  string(result.Modality),
		Accepted:  result.Accepted,
		Reason:    result.Reason,
		ElapsedMs: float64(elapsed.Microseconds()) / 1000.0,
		CreatedAt: time.Now().UTC(),
	}

	if len(result.Scores) > 0 {
		serialized, err := json.Marshal(result.Scores)
		if err != nil {
			return nil, err
		}
		attempt.Scores = string(serialized)
	}
	if result.Quality != nil {
		serialized, err := json.Marshal(result.Quality)
		if err != nil {
			return nil, err
		}
		attempt.Quality = string(serialized)
	}

	return attempt, nil
}

// GetAttempt retrieves a cached attempt outcome or loads from the ledger.
func (uc *VerificationUseCase) GetAttempt(ctx context.Context, userID, attemptID string) (*repository.VerificationAttempt, error) {
	cacheKey := attemptCacheKey(attemptID)
	if cached, err := uc.withRedisGet(ctx, attemptID, "cache.get.result", cacheKey); err == nil {
		var payload cachedAttempt
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_attempt", attemptID).Warn("failed to decode cached attempt", zap.Error(err))
		} else if payload.UserID == userID {
			attempt := &repository.VerificationAttempt{
				AttemptID: attemptID,
				UserID:    payload.UserID,
				Modality:  payload.Modality,
				Accepted:  payload.Accepted,
				Reason:    payload.Reason,
				CreatedAt: payload.CreatedAt,
			}
			if len(payload.Scores) > 0 {
				serialized, err := json.Marshal(payload.Scores)
				if err == nil {
					attempt.Scores = string(serialized)
				}
			}
			return attempt, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_attempt", attemptID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.attempts.FindByAttemptIDAndUser(ctx, attemptID, userID)
}

func attemptCacheKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s", attemptID)
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, attemptID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, attemptID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, attemptID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, attemptID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, attemptID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, attemptID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, attemptID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, attemptID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
