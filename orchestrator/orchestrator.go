// Package orchestrator fans queries out across the registered sources,
// merges and ranks the combined results, and runs whole batches behind
// a single-run gate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"pricescout/config"
	"pricescout/models"
	"pricescout/sources"
)

var (
	// ErrInvalidQuery marks a structurally invalid query; it is fatal to
	// that query only.
	ErrInvalidQuery = errors.New("orchestrator: invalid query")
	// ErrNoSources means the registry is empty; the batch aborts before
	// any task starts.
	ErrNoSources = errors.New("orchestrator: no sources enabled")
	// ErrRunInProgress is returned when a batch trigger fires while
	// another batch is still running.
	ErrRunInProgress = errors.New("orchestrator: a batch run is already in progress")
)

// Orchestrator processes one query across all registered sources.
type Orchestrator struct {
	registry *sources.Registry
}

// New builds an orchestrator over the given registry.
func New(registry *sources.Registry) *Orchestrator {
	return &Orchestrator{registry: registry}
}

type sourceOutcome struct {
	id       string
	products []models.Product
	err      error
	elapsed  time.Duration
}

// ProcessQuery launches one task per source and joins them all-settled:
// a failing source is recorded in the per-source status and never
// cancels its siblings. The merged list is filtered and stably sorted.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query models.SearchQuery, settings config.Settings) (*models.QueryResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, fmt.Errorf("%w: empty query text", ErrInvalidQuery)
	}
	enabled := o.registry.Enabled()
	if len(enabled) == 0 {
		return nil, ErrNoSources
	}

	start := time.Now()
	outcomes := make([]sourceOutcome, len(enabled))

	var wg sync.WaitGroup
	for i, src := range enabled {
		outcomes[i].id = src.ID()
		wg.Add(1)
		go func(idx int, src sources.Source) {
			defer wg.Done()
			taskStart := time.Now()
			defer func() {
				outcomes[idx].elapsed = time.Since(taskStart)
				if r := recover(); r != nil {
					outcomes[idx].err = fmt.Errorf("source panic: %v", r)
				}
			}()
			products, err := src.Search(ctx, query.Text)
			outcomes[idx].products = products
			outcomes[idx].err = err
		}(i, src)
	}
	wg.Wait()

	result := &models.QueryResult{
		Query:           query,
		PerSourceStatus: make(map[string]*models.SourceStatus, len(enabled)),
	}

	var candidates []models.Product
	for _, outcome := range outcomes {
		status := &models.SourceStatus{LastUpdated: time.Now()}
		if outcome.err != nil {
			status.State = models.SourceStateError
			status.Message = outcome.err.Error()
			status.ErrorCount = 1
			result.Errors = append(result.Errors, models.SourceError{
				Source:    outcome.id,
				Message:   outcome.err.Error(),
				Timestamp: time.Now(),
			})
			slog.Warn("source failed",
				slog.String("source", outcome.id),
				slog.String("query", query.Text),
				slog.Any("error", outcome.err),
			)
		} else {
			status.State = models.SourceSuccess
			status.ProductsFound = len(outcome.products)
			candidates = append(candidates, applySiteFilters(outcome.products, settings)...)
		}
		result.PerSourceStatus[outcome.id] = status
	}

	candidates = applyQueryFilters(candidates, query)
	sortProducts(candidates, settings.SortBy)

	result.Products = candidates
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	slog.Info("query processed",
		slog.String("query", query.Text),
		slog.Int("products", len(candidates)),
		slog.Int64("elapsed_ms", result.ProcessingTimeMs),
	)
	return result, nil
}

// applySiteFilters enforces the per-source result filters: minimum
// rating, availability allowlist, and minimum discount.
func applySiteFilters(products []models.Product, settings config.Settings) []models.Product {
	if settings.MinRating <= 0 && settings.MinDiscountPercent <= 0 && len(settings.Availability) == 0 {
		return products
	}
	out := products[:0:0]
	for _, p := range products {
		if settings.MinRating > 0 {
			if p.Rating == nil || *p.Rating < settings.MinRating {
				continue
			}
		}
		if settings.MinDiscountPercent > 0 && p.DiscountPercent < settings.MinDiscountPercent {
			continue
		}
		if len(settings.Availability) > 0 && !availabilityAllowed(p.Availability, settings.Availability) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func availabilityAllowed(a models.Availability, allowed []models.Availability) bool {
	for _, candidate := range allowed {
		if a == candidate {
			return true
		}
	}
	return false
}

// applyQueryFilters enforces the query-level cutoffs. Currency is a
// match filter only: no exchange rates are applied, and products with
// an undetected currency pass through.
func applyQueryFilters(products []models.Product, query models.SearchQuery) []models.Product {
	if query.MaxPrice <= 0 && (query.Currency == "" || query.Currency == models.CurrencyUnknown) {
		return products
	}
	out := products[:0:0]
	for _, p := range products {
		if query.MaxPrice > 0 && p.Price > query.MaxPrice {
			continue
		}
		if query.Currency != "" && query.Currency != models.CurrencyUnknown &&
			p.Currency != models.CurrencyUnknown && p.Currency != query.Currency {
			continue
		}
		out = append(out, p)
	}
	return out
}

// sortProducts applies a stable total order: ties keep their original
// encounter order. Missing ratings and discounts sort as zero.
func sortProducts(products []models.Product, by config.SortCriterion) {
	rating := func(p models.Product) float64 {
		if p.Rating == nil {
			return 0
		}
		return *p.Rating
	}
	var less func(a, b models.Product) bool
	switch by {
	case config.SortPriceDesc:
		less = func(a, b models.Product) bool { return a.Price > b.Price }
	case config.SortRatingAsc:
		less = func(a, b models.Product) bool { return rating(a) < rating(b) }
	case config.SortRatingDesc:
		less = func(a, b models.Product) bool { return rating(a) > rating(b) }
	case config.SortDiscountDesc:
		less = func(a, b models.Product) bool { return a.DiscountPercent > b.DiscountPercent }
	default: // price_asc
		less = func(a, b models.Product) bool { return a.Price < b.Price }
	}
	sort.SliceStable(products, func(i, j int) bool { return less(products[i], products[j]) })
}
