package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricescout/config"
	"pricescout/models"
	"pricescout/sources"
)

type fakeSource struct {
	id       string
	products []models.Product
	err      error
	panics   bool
	delay    time.Duration
	block    chan struct{}
}

func (s *fakeSource) ID() string    { return s.id }
func (s *fakeSource) Label() string { return s.id }

func (s *fakeSource) Search(ctx context.Context, query string) ([]models.Product, error) {
	if s.panics {
		panic("boom")
	}
	if s.block != nil {
		<-s.block
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	for i := range out {
		out[i].SourceID = s.id
		out[i].OriginalQuery = query
	}
	return out, nil
}

func p(url string, price float64) models.Product {
	return models.Product{Title: "T " + url, URL: url, Price: price}
}

func withRating(product models.Product, rating float64) models.Product {
	product.Rating = &rating
	return product
}

func withDiscount(product models.Product, original float64, percent int) models.Product {
	product.OriginalPrice = original
	product.DiscountPercent = percent
	return product
}

func registryOf(srcs ...sources.Source) *sources.Registry {
	r := sources.NewRegistry()
	for _, s := range srcs {
		r.Register(s)
	}
	return r
}

func defaultSettings() config.Settings {
	return config.Settings{SortBy: config.SortPriceAsc}
}

func query(text string) models.SearchQuery {
	return models.SearchQuery{Text: text}
}

func TestProcessQueryMergesAllSources(t *testing.T) {
	o := New(registryOf(
		&fakeSource{id: "a", products: []models.Product{p("a1", 300), p("a2", 100)}},
		&fakeSource{id: "b", products: []models.Product{p("b1", 200)}},
	))

	result, err := o.ProcessQuery(context.Background(), query("chair"), defaultSettings())
	if err != nil {
		t.Fatalf("ProcessQuery error: %v", err)
	}
	if len(result.Products) != 3 {
		t.Fatalf("got %d products, want 3", len(result.Products))
	}
	// price_asc default.
	if result.Products[0].URL != "a2" || result.Products[1].URL != "b1" || result.Products[2].URL != "a1" {
		t.Fatalf("order = %v", urls(result.Products))
	}
	for id, status := range result.PerSourceStatus {
		if status.State != models.SourceSuccess {
			t.Fatalf("source %s state = %s", id, status.State)
		}
	}
	if result.PerSourceStatus["a"].ProductsFound != 2 {
		t.Fatalf("a found = %d, want 2", result.PerSourceStatus["a"].ProductsFound)
	}
	if result.ProcessingTimeMs < 0 {
		t.Fatalf("processing time negative")
	}
}

func TestProcessQueryPartialFailureIsolation(t *testing.T) {
	o := New(registryOf(
		&fakeSource{id: "healthy", products: []models.Product{p("h1", 50), p("h2", 75)}},
		&fakeSource{id: "broken", err: errors.New("certificate expired")},
		&fakeSource{id: "panicky", panics: true},
	))

	result, err := o.ProcessQuery(context.Background(), query("desk"), defaultSettings())
	if err != nil {
		t.Fatalf("sibling failures must not surface: %v", err)
	}

	if len(result.Products) != 2 {
		t.Fatalf("products = %v, want exactly the healthy source's output", urls(result.Products))
	}
	for _, product := range result.Products {
		if product.SourceID != "healthy" {
			t.Fatalf("unexpected source %q in output", product.SourceID)
		}
	}

	if result.PerSourceStatus["broken"].State != models.SourceStateError {
		t.Fatalf("broken state = %s, want error", result.PerSourceStatus["broken"].State)
	}
	if result.PerSourceStatus["panicky"].State != models.SourceStateError {
		t.Fatalf("panicky state = %s, want error", result.PerSourceStatus["panicky"].State)
	}
	if result.PerSourceStatus["healthy"].State != models.SourceSuccess {
		t.Fatalf("healthy state = %s, want success", result.PerSourceStatus["healthy"].State)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(result.Errors))
	}
}

func TestProcessQueryInvalidInput(t *testing.T) {
	o := New(registryOf(&fakeSource{id: "a"}))
	if _, err := o.ProcessQuery(context.Background(), query("   "), defaultSettings()); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestProcessQueryNoSources(t *testing.T) {
	o := New(sources.NewRegistry())
	if _, err := o.ProcessQuery(context.Background(), query("x"), defaultSettings()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("error = %v, want ErrNoSources", err)
	}
}

func TestSiteFilters(t *testing.T) {
	products := []models.Product{
		withRating(p("high", 100), 4.5),
		withRating(p("low", 100), 2.0),
		p("unrated", 100),
	}
	o := New(registryOf(&fakeSource{id: "a", products: products}))

	settings := defaultSettings()
	settings.MinRating = 4.0
	result, err := o.ProcessQuery(context.Background(), query("x"), settings)
	if err != nil {
		t.Fatalf("ProcessQuery error: %v", err)
	}
	if len(result.Products) != 1 || result.Products[0].URL != "high" {
		t.Fatalf("min-rating filter kept %v", urls(result.Products))
	}
}

func TestSiteFilterDiscountAndAvailability(t *testing.T) {
	products := []models.Product{
		withDiscount(p("deal", 80), 100, 20),
		p("full-price", 80),
	}
	products[0].Availability = models.InStock
	products[1].Availability = models.OutOfStock

	o := New(registryOf(&fakeSource{id: "a", products: products}))

	settings := defaultSettings()
	settings.MinDiscountPercent = 10
	settings.Availability = []models.Availability{models.InStock}
	result, err := o.ProcessQuery(context.Background(), query("x"), settings)
	if err != nil {
		t.Fatalf("ProcessQuery error: %v", err)
	}
	if len(result.Products) != 1 || result.Products[0].URL != "deal" {
		t.Fatalf("filters kept %v", urls(result.Products))
	}
}

func TestQueryFilters(t *testing.T) {
	products := []models.Product{p("cheap", 100), p("pricey", 9000)}
	products[0].Currency = models.CurrencyINR
	products[1].Currency = models.CurrencyINR
	usd := p("foreign", 50)
	usd.Currency = models.CurrencyUSD
	unknown := p("mystery", 60)
	unknown.Currency = models.CurrencyUnknown
	products = append(products, usd, unknown)

	o := New(registryOf(&fakeSource{id: "a", products: products}))

	q := models.SearchQuery{Text: "x", MaxPrice: 500, Currency: models.CurrencyINR}
	result, err := o.ProcessQuery(context.Background(), q, defaultSettings())
	if err != nil {
		t.Fatalf("ProcessQuery error: %v", err)
	}
	// MaxPrice drops pricey, currency drops the USD record, unknown
	// currency passes through unconverted. price_asc puts mystery first.
	got := urls(result.Products)
	if len(got) != 2 || got[0] != "mystery" || got[1] != "cheap" {
		t.Fatalf("query filters kept %v, want [mystery cheap]", got)
	}
}

func TestSortStability(t *testing.T) {
	products := []models.Product{p("first", 100), p("second", 100), p("third", 100)}
	sortProducts(products, config.SortPriceAsc)
	if products[0].URL != "first" || products[1].URL != "second" || products[2].URL != "third" {
		t.Fatalf("equal keys must keep insertion order: %v", urls(products))
	}
}

func TestSortCriteria(t *testing.T) {
	build := func() []models.Product {
		return []models.Product{
			withDiscount(withRating(p("a", 300), 3.0), 400, 25),
			withRating(p("b", 100), 5.0),
			withDiscount(p("c", 200), 500, 60),
		}
	}

	tests := []struct {
		name     string
		criteria config.SortCriterion
		expected []string
	}{
		{name: "price asc", criteria: config.SortPriceAsc, expected: []string{"b", "c", "a"}},
		{name: "price desc", criteria: config.SortPriceDesc, expected: []string{"a", "c", "b"}},
		{name: "rating desc missing as zero", criteria: config.SortRatingDesc, expected: []string{"b", "a", "c"}},
		{name: "rating asc missing as zero", criteria: config.SortRatingAsc, expected: []string{"c", "a", "b"}},
		{name: "discount desc", criteria: config.SortDiscountDesc, expected: []string{"c", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := build()
			sortProducts(products, tt.criteria)
			got := urls(products)
			for i, want := range tt.expected {
				if got[i] != want {
					t.Fatalf("%s: order = %v, want %v", tt.criteria, got, tt.expected)
				}
			}
		})
	}

	// price_asc adjacency property.
	products := build()
	sortProducts(products, config.SortPriceAsc)
	for i := 1; i < len(products); i++ {
		if products[i-1].Price > products[i].Price {
			t.Fatalf("price_asc violated at %d: %v", i, urls(products))
		}
	}
}

func urls(products []models.Product) []string {
	out := make([]string, len(products))
	for i, product := range products {
		out[i] = product.URL
	}
	return out
}
