package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"pricescout/config"
	"pricescout/models"
	"pricescout/parser"
)

// SnapdealSource scrapes Snapdeal search results. The grid is plain
// server-rendered HTML, so a colly collector is enough; no browser tab
// is spent on it.
type SnapdealSource struct {
	// BaseURL and Transport are overridable for tests.
	BaseURL   string
	Transport http.RoundTripper
	cfg       *config.Config
	metrics   *Metrics
}

// NewSnapdealSource builds the Snapdeal search source.
func NewSnapdealSource(cfg *config.Config, metrics *Metrics) *SnapdealSource {
	return &SnapdealSource{
		BaseURL: "https://www.snapdeal.com",
		cfg:     cfg,
		metrics: metrics,
	}
}

func (s *SnapdealSource) ID() string    { return "snapdeal" }
func (s *SnapdealSource) Label() string { return "Snapdeal" }

// Search fetches all result pages concurrently through one async
// collector whose LimitRule bounds parallelism and injects jitter.
func (s *SnapdealSource) Search(ctx context.Context, query string) ([]models.Product, error) {
	start := time.Now()
	s.metrics.IncSearch(s.ID())
	defer func() { s.metrics.ObserveSearch(time.Since(start)) }()

	parsed, err := url.Parse(s.BaseURL)
	if err != nil || parsed.Host == "" {
		return nil, ErrSourceUnreachable{Source: s.ID(), Err: fmt.Errorf("bad base url %q", s.BaseURL)}
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(s.cfg.UserAgent),
	)
	collector.SetRequestTimeout(s.cfg.PageTimeout.Std())
	if s.Transport != nil {
		collector.WithTransport(s.Transport)
	}
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.PageConcurrency,
		Delay:       s.cfg.JitterMin.Std(),
		RandomDelay: s.cfg.JitterMax.Std() - s.cfg.JitterMin.Std(),
	}); err != nil {
		return nil, ErrSourceUnreachable{Source: s.ID(), Err: fmt.Errorf("configure limits: %w", err)}
	}

	pageCount := s.cfg.PageCount()
	pages := make([][]models.Product, pageCount)
	var mu sync.Mutex
	errCount := 0
	var lastErr error

	collector.OnHTML("div.product-tuple-listing", func(e *colly.HTMLElement) {
		product := s.extractTuple(e, query)
		if product == nil {
			return
		}
		idx, convErr := strconv.Atoi(e.Request.Ctx.Get("page"))
		if convErr != nil || idx < 0 || idx >= pageCount {
			return
		}
		mu.Lock()
		pages[idx] = append(pages[idx], *product)
		mu.Unlock()
	})

	collector.OnError(func(r *colly.Response, err error) {
		classified := classifyPageError(err)
		s.metrics.IncError(s.ID(), errorTypeLabel(classified))
		mu.Lock()
		errCount++
		lastErr = classified
		mu.Unlock()
		slog.Warn("snapdeal page failed",
			slog.String("url", r.Request.URL.String()),
			slog.Any("error", err),
		)
	})

	for i := 0; i < pageCount; i++ {
		if ctx.Err() != nil {
			break
		}
		reqCtx := colly.NewContext()
		reqCtx.Put("page", strconv.Itoa(i))
		pageURL := fmt.Sprintf("%s/search?keyword=%s&page=%d", s.BaseURL, url.QueryEscape(query), i+1)
		if err := collector.Request(http.MethodGet, pageURL, nil, reqCtx, nil); err != nil {
			mu.Lock()
			errCount++
			lastErr = err
			mu.Unlock()
		}
	}
	collector.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := range pages {
		outcome := "ok"
		if len(pages[i]) == 0 {
			outcome = "empty"
		}
		s.metrics.IncPage(s.ID(), outcome)
		s.metrics.AddProducts(s.ID(), "primary", len(pages[i]))
	}

	merged := mergePages(pages, s.cfg.MaxProductsPerSource)
	if len(merged) == 0 && errCount >= pageCount && lastErr != nil {
		return nil, ErrSourceUnreachable{Source: s.ID(), Err: lastErr}
	}
	return merged, nil
}

func (s *SnapdealSource) extractTuple(e *colly.HTMLElement, query string) *models.Product {
	title := strings.TrimSpace(e.ChildText("p.product-title"))
	if title == "" {
		title = strings.TrimSpace(e.ChildAttr("p.product-title", "title"))
	}
	href := e.ChildAttr("a.dp-widget-link", "href")
	if href == "" {
		href = e.ChildAttr("a", "href")
	}
	if title == "" || href == "" {
		return nil
	}

	priceText := strings.TrimSpace(e.ChildText("span.product-price"))
	price, ok := parser.ExtractPrice(priceText)
	if !ok || price <= 0 {
		return nil
	}

	p := &models.Product{
		Title:         title,
		URL:           e.Request.AbsoluteURL(href),
		Price:         price,
		Currency:      parser.DetectCurrency(priceText),
		Availability:  models.InStock,
		ImageURL:      e.Request.AbsoluteURL(e.ChildAttr("img.product-image", "src")),
		SourceID:      s.ID(),
		OriginalQuery: query,
		ExtractedAt:   time.Now(),
	}

	if orig, ok := parser.ExtractPrice(e.ChildText("span.product-desc-price")); ok && orig > 0 {
		p.OriginalPrice = orig
		p.DiscountPercent = parser.DiscountPercent(price, orig)
	}
	// Snapdeal encodes rating as a fill percentage width, e.g. "width:80%".
	if width, ok := parser.ExtractPrice(e.ChildAttr("div.filled-stars", "style")); ok && width > 0 && width <= 100 {
		stars := width / 20
		p.Rating = &stars
	}
	if reviews, ok := parser.ParseReviewCount(e.ChildText("p.product-rating-count")); ok {
		p.ReviewCount = &reviews
	}
	return p
}
