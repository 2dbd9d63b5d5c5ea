package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"pricescout/config"
	"pricescout/extract"
	"pricescout/models"
	"pricescout/render"
)

// siteProfile describes one JS-rendered site: how to build search page
// URLs and how to read products off the rendered grid.
type siteProfile struct {
	id        string
	label     string
	baseURL   string
	searchURL func(query string, page int) string
	selectors extract.SelectorGroup
	// waitJS is the predicate polled after navigation; it should return
	// true once the result grid has populated.
	waitJS string
}

// RenderedSource paginates a JS-heavy site through the headless
// browser. One instance owns one page-concurrency semaphore; page
// handles are acquired fresh per task and always released.
type RenderedSource struct {
	profile siteProfile
	browser render.Browser
	cfg     *config.Config
	metrics *Metrics
	sem     *semaphore.Weighted
}

func newRenderedSource(profile siteProfile, browser render.Browser, cfg *config.Config, metrics *Metrics) *RenderedSource {
	return &RenderedSource{
		profile: profile,
		browser: browser,
		cfg:     cfg,
		metrics: metrics,
		sem:     semaphore.NewWeighted(int64(cfg.PageConcurrency)),
	}
}

func (s *RenderedSource) ID() string    { return s.profile.id }
func (s *RenderedSource) Label() string { return s.profile.label }

type pageOutcome struct {
	products []models.Product
	err      error
}

// Search fans out one task per result page, merges in ascending page
// order, and dedups by URL. A failing page contributes an empty list;
// an error is returned only when every page failed.
func (s *RenderedSource) Search(ctx context.Context, query string) ([]models.Product, error) {
	start := time.Now()
	s.metrics.IncSearch(s.profile.id)
	defer func() { s.metrics.ObserveSearch(time.Since(start)) }()

	pageCount := s.cfg.PageCount()
	outcomes := make([]pageOutcome, pageCount)

	var wg sync.WaitGroup
	for i := 0; i < pageCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := s.sem.Acquire(ctx, 1); err != nil {
				outcomes[idx].err = classifyPageError(err)
				return
			}
			defer s.sem.Release(1)
			outcomes[idx] = s.fetchPage(ctx, query, idx+1)
		}(i)
	}
	wg.Wait()

	pages := make([][]models.Product, pageCount)
	hardFailed := 0
	var lastErr error
	for i, outcome := range outcomes {
		pages[i] = outcome.products
		if outcome.err == nil {
			continue
		}
		label := errorTypeLabel(outcome.err)
		s.metrics.IncError(s.profile.id, label)
		slog.Warn("page task failed",
			slog.String("source", s.profile.id),
			slog.Int("page", i+1),
			slog.String("category", label),
			slog.Any("error", outcome.err),
		)
		// Empty extraction is a degraded-but-valid page; only
		// navigation-level failures count towards unreachability.
		var empty ErrExtractionEmpty
		if !errors.As(outcome.err, &empty) {
			hardFailed++
			lastErr = outcome.err
		}
	}

	merged := mergePages(pages, s.cfg.MaxProductsPerSource)
	if len(merged) == 0 && hardFailed == pageCount && lastErr != nil {
		return nil, ErrSourceUnreachable{Source: s.profile.id, Err: lastErr}
	}

	slog.Debug("source search complete",
		slog.String("source", s.profile.id),
		slog.String("query", query),
		slog.Int("products", len(merged)),
		slog.Int("failed_pages", hardFailed),
	)
	return merged, nil
}

// fetchPage runs one isolated page task: acquire a fresh tab, navigate,
// wait for the grid, extract, jitter, release. The tab is closed on
// every exit path.
func (s *RenderedSource) fetchPage(ctx context.Context, query string, pageNum int) pageOutcome {
	start := time.Now()
	defer func() { s.metrics.ObservePage(time.Since(start)) }()

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		s.metrics.IncPage(s.profile.id, "error")
		return pageOutcome{err: classifyPageError(fmt.Errorf("new page: %w", err))}
	}
	defer func() {
		// Jitter before releasing the tab keeps request spacing
		// irregular; it is detectability hygiene, not correctness.
		s.jitter(ctx)
		if err := page.Close(); err != nil {
			slog.Debug("page close failed", slog.String("source", s.profile.id), slog.Any("error", err))
		}
	}()

	pageURL := s.profile.searchURL(query, pageNum)
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout.Std())
	defer cancel()

	if err := page.Navigate(navCtx, pageURL); err != nil {
		s.metrics.IncPage(s.profile.id, "error")
		return pageOutcome{err: classifyPageError(err)}
	}

	// A missed grid wait is not fatal: extract whatever rendered.
	if err := page.WaitFor(navCtx, s.profile.waitJS); err != nil {
		slog.Debug("grid wait expired",
			slog.String("source", s.profile.id),
			slog.String("url", pageURL),
		)
	}
	if err := page.ScrollToBottom(navCtx); err != nil {
		slog.Debug("scroll failed", slog.String("source", s.profile.id), slog.Any("error", err))
	}

	html, err := page.HTML(navCtx)
	if err != nil {
		s.metrics.IncPage(s.profile.id, "error")
		return pageOutcome{err: classifyPageError(err)}
	}

	products := extract.Products(html, s.profile.selectors, s.profile.baseURL, s.profile.id, query)
	strategy := "primary"
	if len(products) == 0 {
		products = extract.Fallback(html, s.profile.baseURL, s.profile.id, query)
		strategy = "fallback"
	}
	s.metrics.AddProducts(s.profile.id, strategy, len(products))

	if len(products) == 0 {
		s.metrics.IncPage(s.profile.id, "empty")
		return pageOutcome{err: ErrExtractionEmpty{URL: pageURL}}
	}
	s.metrics.IncPage(s.profile.id, "ok")
	return pageOutcome{products: products}
}

func (s *RenderedSource) jitter(ctx context.Context) {
	min := s.cfg.JitterMin.Std()
	max := s.cfg.JitterMax.Std()
	delay := min
	if span := max - min; span > 0 {
		delay += time.Duration(rand.Int64N(int64(span)))
	}
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
