package pipeline

import (
	"context"
	"fmt"

	"github.com/chronomap/chronomap-go/internal/observability/metrics"
)

// RetryState labels the controller's position in its state machine.
type RetryState string

const (
	StateAttempting     RetryState = "attempting"
	StateSucceeded      RetryState = "succeeded"
	StatePartialSuccess RetryState = "partial_success"
	StateExhausted      RetryState = "exhausted"
)

// InsufficientCandidatesError reports that the pipeline ran to completion
// but validation and filtering starved the result pool completely.
type InsufficientCandidatesError struct {
	RequestedCount int
	AttemptsUsed   int
}

func (e *InsufficientCandidatesError) Error() string {
	return fmt.Sprintf("no valid photo candidates after %d attempts (requested %d)",
		e.AttemptsUsed, e.RequestedCount)
}

// FetchTransportError reports that the underlying transport failed for every
// location on the final attempt. It is remediated differently from
// candidate starvation: the network, not the filters, is the problem.
type FetchTransportError struct {
	AttemptsUsed int
	Cause        error
}

func (e *FetchTransportError) Error() string {
	return fmt.Sprintf("transport failure on final attempt after %d attempts: %v",
		e.AttemptsUsed, e.Cause)
}

func (e *FetchTransportError) Unwrap() error {
	return e.Cause
}

// RetryController drives attempts with expanding parameters until enough
// valid records exist or retries exhaust.
type RetryController struct {
	orchestrator *Orchestrator
	aggregator   *Aggregator
	maxRetries   int
	metrics      *metrics.PipelineMetrics
}

// NewRetryController creates a RetryController allowing maxRetries
// additional attempts after the first. The metrics argument may be nil.
func NewRetryController(orchestrator *Orchestrator, aggregator *Aggregator, maxRetries int, m *metrics.PipelineMetrics) *RetryController {
	return &RetryController{
		orchestrator: orchestrator,
		aggregator:   aggregator,
		maxRetries:   maxRetries,
		metrics:      m,
	}
}

// Run executes the attempt loop for one fetch request. Valid records
// accumulate across attempts (deduplicated by provider id), so an expanded
// later attempt only has to cover the shortfall.
//
// Outcomes follow the controller's state machine: enough records is success,
// some records after the final attempt is a partial success returned without
// error, zero records is an InsufficientCandidatesError, and zero records
// with every geo search transport-failing on the final attempt is a
// FetchTransportError.
func (r *RetryController) Run(ctx context.Context, count int, category string) ([]PhotoRecord, error) {
	pool := make([]PhotoRecord, 0, count)
	seen := make(map[int64]struct{})
	var finalGeoFailure error

	for n := 0; n <= r.maxRetries; n++ {
		params := r.orchestrator.AttemptParams(count, n)
		logger := serviceLogger.With("state", string(StateAttempting), "attempt", n, "requested", count)
		logger.Info("Starting search attempt",
			"radius_m", params.RadiusMeters,
			"per_location_limit", params.PerLocationLimit,
			"location_count", params.LocationCount)
		if r.metrics != nil {
			r.metrics.IncrementAttempts()
		}

		candidates, geoFailure := r.orchestrator.Search(ctx, category, params)
		finalGeoFailure = geoFailure

		records := r.aggregator.Aggregate(ctx, candidates)
		for _, rec := range records {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			pool = append(pool, rec)
		}

		logger.Info("Attempt finished",
			"candidates", len(candidates),
			"valid_records", len(pool))

		if len(pool) >= count {
			serviceLogger.Info("Fetch succeeded",
				"state", string(StateSucceeded),
				"attempts_used", n+1,
				"pool_size", len(pool))
			return pool, nil
		}
	}

	attemptsUsed := r.maxRetries + 1

	if len(pool) > 0 {
		serviceLogger.Warn("Fetch completed with shortfall",
			"state", string(StatePartialSuccess),
			"requested", count,
			"found", len(pool),
			"attempts_used", attemptsUsed)
		return pool, nil
	}

	if finalGeoFailure != nil {
		serviceLogger.Error("Fetch exhausted with transport failure on final attempt",
			"state", string(StateExhausted),
			"attempts_used", attemptsUsed,
			"error", finalGeoFailure)
		return nil, &FetchTransportError{
			AttemptsUsed: attemptsUsed,
			Cause:        finalGeoFailure,
		}
	}

	serviceLogger.Error("Fetch exhausted with no valid candidates",
		"state", string(StateExhausted),
		"requested", count,
		"attempts_used", attemptsUsed)
	return nil, &InsufficientCandidatesError{
		RequestedCount: count,
		AttemptsUsed:   attemptsUsed,
	}
}
