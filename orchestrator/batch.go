package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pricescout/config"
	"pricescout/models"
)

// ResultHook is called with the finished batch. Delivery (email,
// webhook, ...) is the hook owner's business; the runner only invokes
// it.
type ResultHook func(*models.BatchResult)

// BatchRunner iterates queries sequentially, bounding total load to one
// query's worth of cross-source concurrency at a time. At most one
// batch runs system-wide: concurrent triggers are rejected, not queued.
type BatchRunner struct {
	orchestrator *Orchestrator
	running      atomic.Bool
	hook         ResultHook
}

// NewBatchRunner builds a runner over the given orchestrator.
func NewBatchRunner(o *Orchestrator) *BatchRunner {
	return &BatchRunner{orchestrator: o}
}

// SetResultHook installs the result-ready callback. Must be set before
// the first Run.
func (b *BatchRunner) SetResultHook(hook ResultHook) {
	b.hook = hook
}

// Running reports whether a batch is currently executing.
func (b *BatchRunner) Running() bool {
	return b.running.Load()
}

// Run executes all queries and aggregates their results. It returns
// ErrRunInProgress when another batch holds the gate, ErrNoSources or
// ErrInvalidQuery for configuration-level failures, and otherwise
// always a BatchResult, even under total source failure.
func (b *BatchRunner) Run(ctx context.Context, queries []models.SearchQuery, settings config.Settings) (*models.BatchResult, error) {
	if !b.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer b.running.Store(false)

	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: empty query list", ErrInvalidQuery)
	}
	if b.orchestrator.registry.Len() == 0 {
		return nil, ErrNoSources
	}

	start := time.Now()
	batch := &models.BatchResult{
		BatchID:               uuid.NewString(),
		AggregateSourceStatus: make(map[string]*models.SourceStatus),
	}
	for _, src := range b.orchestrator.registry.Enabled() {
		batch.AggregateSourceStatus[src.ID()] = &models.SourceStatus{
			State:       models.SourceNotSearched,
			LastUpdated: time.Now(),
		}
	}

	slog.Info("batch started",
		slog.String("batch_id", batch.BatchID),
		slog.Int("queries", len(queries)),
	)

	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			batch.Errors = append(batch.Errors, models.SourceError{
				Source:    "batch",
				Message:   fmt.Sprintf("run cancelled: %v", err),
				Timestamp: time.Now(),
			})
			break
		}

		result, err := b.orchestrator.ProcessQuery(ctx, query, settings)
		if err != nil {
			// Fatal to this query only.
			batch.Errors = append(batch.Errors, models.SourceError{
				Source:    "batch",
				Message:   fmt.Sprintf("query %q: %v", query.Text, err),
				Timestamp: time.Now(),
			})
			continue
		}

		batch.QueryResults = append(batch.QueryResults, result)
		batch.TotalProducts += len(result.Products)
		b.accumulateStatus(batch, result)
	}

	if settings.GlobalSort {
		globalSort(batch, settings.SortBy)
	}

	batch.TotalDurationMs = time.Since(start).Milliseconds()
	slog.Info("batch finished",
		slog.String("batch_id", batch.BatchID),
		slog.Int("products", batch.TotalProducts),
		slog.Int64("elapsed_ms", batch.TotalDurationMs),
	)

	if b.hook != nil {
		b.hook(batch)
	}
	return batch, nil
}

// RunSingle processes one ad-hoc query behind the same gate.
func (b *BatchRunner) RunSingle(ctx context.Context, query models.SearchQuery, settings config.Settings) (*models.QueryResult, error) {
	if !b.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer b.running.Store(false)

	if b.orchestrator.registry.Len() == 0 {
		return nil, ErrNoSources
	}
	return b.orchestrator.ProcessQuery(ctx, query, settings)
}

// accumulateStatus folds a query's per-source statuses into the batch
// aggregate: counts are cumulative, state reflects the latest attempt.
func (b *BatchRunner) accumulateStatus(batch *models.BatchResult, result *models.QueryResult) {
	for id, status := range result.PerSourceStatus {
		agg, ok := batch.AggregateSourceStatus[id]
		if !ok {
			agg = &models.SourceStatus{State: models.SourceNotSearched}
			batch.AggregateSourceStatus[id] = agg
		}
		agg.State = status.State
		agg.Message = status.Message
		agg.ProductsFound += status.ProductsFound
		agg.ErrorCount += status.ErrorCount
		agg.LastUpdated = time.Now()
	}
}

// globalSort re-ranks every product of the batch in one combined order,
// then redistributes them back into their original queries' lists.
func globalSort(batch *models.BatchResult, by config.SortCriterion) {
	var combined []models.Product
	for _, result := range batch.QueryResults {
		combined = append(combined, result.Products...)
	}
	sortProducts(combined, by)

	perQuery := make(map[string][]models.Product, len(batch.QueryResults))
	for _, p := range combined {
		perQuery[p.OriginalQuery] = append(perQuery[p.OriginalQuery], p)
	}
	for _, result := range batch.QueryResults {
		result.Products = perQuery[result.Query.Text]
	}
}

// Stats computes the aggregate statistics exposed at the status
// boundary.
func Stats(batch *models.BatchResult) models.AggregateStats {
	stats := models.AggregateStats{
		TotalQueries:  len(batch.QueryResults),
		TotalProducts: batch.TotalProducts,
	}

	var totalMs int64
	for _, result := range batch.QueryResults {
		totalMs += result.ProcessingTimeMs
		failed := false
		for _, status := range result.PerSourceStatus {
			if status.State == models.SourceStateError {
				failed = true
			}
		}
		if failed && len(result.Products) == 0 {
			stats.FailedQueries++
		} else {
			stats.SuccessfulQueries++
		}
	}

	for _, status := range batch.AggregateSourceStatus {
		switch status.State {
		case models.SourceSuccess:
			stats.SourcesTried++
			stats.SuccessfulSources++
		case models.SourceStateError:
			stats.SourcesTried++
			stats.FailedSources++
		}
	}

	if stats.TotalQueries > 0 {
		stats.AvgProductsPerQuery = float64(stats.TotalProducts) / float64(stats.TotalQueries)
		stats.AvgProcessingTimeMs = float64(totalMs) / float64(stats.TotalQueries)
	}
	return stats
}
