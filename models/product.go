// Package models defines data structures shared across the aggregator.
package models

import "time"

// Currency identifies the currency detected in a price string.
type Currency string

const (
	CurrencyINR     Currency = "INR"
	CurrencyUSD     Currency = "USD"
	CurrencyEUR     Currency = "EUR"
	CurrencyGBP     Currency = "GBP"
	CurrencyUnknown Currency = "UNKNOWN"
)

// Availability describes whether a product can be bought right now.
type Availability string

const (
	InStock      Availability = "in_stock"
	OutOfStock   Availability = "out_of_stock"
	PreOrder     Availability = "pre_order"
	AvailUnknown Availability = "unknown"
)

// Product is one search hit extracted from a source page. URL is the
// identity key: two products with the same URL are the same product.
type Product struct {
	Title           string       `csv:"title" json:"title"`
	URL             string       `csv:"url" json:"url"`
	Price           float64      `csv:"price" json:"price"`
	Currency        Currency     `csv:"currency" json:"currency"`
	OriginalPrice   float64      `csv:"original_price" json:"original_price,omitempty"`
	DiscountPercent int          `csv:"discount_percent" json:"discount_percent"`
	Availability    Availability `csv:"availability" json:"availability"`
	Rating          *float64     `csv:"rating" json:"rating,omitempty"`
	ReviewCount     *int         `csv:"review_count" json:"review_count,omitempty"`
	ImageURL        string       `csv:"image_url" json:"image_url"`
	SourceID        string       `csv:"source" json:"source"`
	OriginalQuery   string       `csv:"query" json:"query"`
	ExtractedAt     time.Time    `csv:"extracted_at" json:"extracted_at"`
}

// SearchQuery is one caller-supplied query. MaxPrice <= 0 means no cap.
type SearchQuery struct {
	Text     string   `json:"text" yaml:"text"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	MaxPrice float64  `json:"max_price,omitempty" yaml:"max_price,omitempty"`
	Currency Currency `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// SourceState is the outcome of a source's most recent attempt.
type SourceState string

const (
	SourceSuccess     SourceState = "success"
	SourceStateError  SourceState = "error"
	SourceNotSearched SourceState = "not_searched"
)

// SourceStatus tracks one source across a batch. Counts only increase.
type SourceStatus struct {
	State         SourceState `json:"state"`
	Message       string      `json:"message,omitempty"`
	ProductsFound int         `json:"products_found"`
	ErrorCount    int         `json:"error_count"`
	LastUpdated   time.Time   `json:"last_updated"`
}

// SourceError is one diagnostic captured while processing a query.
type SourceError struct {
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryResult is the merged, filtered, sorted outcome of one query.
// Immutable once the batch runner records it.
type QueryResult struct {
	Query            SearchQuery              `json:"query"`
	Products         []Product                `json:"products"`
	PerSourceStatus  map[string]*SourceStatus `json:"per_source_status"`
	Errors           []SourceError            `json:"errors,omitempty"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
}

// BatchResult aggregates every query of one run.
type BatchResult struct {
	BatchID               string                   `json:"batch_id"`
	QueryResults          []*QueryResult           `json:"query_results"`
	AggregateSourceStatus map[string]*SourceStatus `json:"aggregate_source_status"`
	TotalProducts         int                      `json:"total_products"`
	TotalDurationMs       int64                    `json:"total_duration_ms"`
	Errors                []SourceError            `json:"errors,omitempty"`
}

// AggregateStats summarises a batch for the status boundary.
type AggregateStats struct {
	TotalQueries        int     `json:"total_queries"`
	TotalProducts       int     `json:"total_products"`
	SuccessfulQueries   int     `json:"successful_queries"`
	FailedQueries       int     `json:"failed_queries"`
	SourcesTried        int     `json:"sources_tried"`
	SuccessfulSources   int     `json:"successful_sources"`
	FailedSources       int     `json:"failed_sources"`
	AvgProductsPerQuery float64 `json:"avg_products_per_query"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}
