package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalAttempts    int64                      `json:"total_attempts"`
	AcceptedAttempts int64                      `json:"accepted_attempts"`
	AcceptanceRate   float64                    `json:"acceptance_rate"`
	AverageElapsedMs float64                    `json:"average_elapsed_ms"`
	ByModality       map[string]ModalitySummary `json:"by_modality"`
}

// ModalitySummary is the per-modality slice of the summary.
type ModalitySummary struct {
	TotalAttempts    int64   `json:"total_attempts"`
	AcceptedAttempts int64   `json:"accepted_attempts"`
	AcceptanceRate   float64 `json:"acceptance_rate"`
}

// GetMetricsSummary aggregates verification metrics from the attempt
// ledger.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.attempts.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalAttempts:    aggregation.TotalCount,
		AcceptedAttempts: aggregation.AcceptedCount,
		AverageElapsedMs: aggregation.AverageElapsedMs,
		ByModality:       map[string]ModalitySummary{},
	}

	if aggregation.TotalCount > 0 {
		summary.AcceptanceRate = float64(aggregation.AcceptedCount) / float64(aggregation.TotalCount)
	}

	for modality, slice := range aggregation.ByModality {
		entry := ModalitySummary{
			TotalAttempts:    slice.TotalCount,
			AcceptedAttempts: slice.AcceptedCount,
		}
		if slice.TotalCount > 0 {
			entry.AcceptanceRate = float64(slice.AcceptedCount) / float64(slice.TotalCount)
		}
		summary.ByModality[modality] = entry
	}

	return summary, nil
}
