// Package config holds aggregator configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pricescout/models"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "20s" as well as integer nanosecond counts.
type Duration time.Duration

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err == nil {
		parsed, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", text, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var nanos int64
	if err := value.Decode(&nanos); err != nil {
		return fmt.Errorf("duration must be a string or integer")
	}
	*d = Duration(nanos)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// SortCriterion selects the total order applied to query results.
type SortCriterion string

const (
	SortPriceAsc     SortCriterion = "price_asc"
	SortPriceDesc    SortCriterion = "price_desc"
	SortRatingAsc    SortCriterion = "rating_asc"
	SortRatingDesc   SortCriterion = "rating_desc"
	SortDiscountDesc SortCriterion = "discount_desc"
)

// Settings are the per-run filter and ranking knobs.
type Settings struct {
	SortBy             SortCriterion         `yaml:"sort_by" json:"sort_by"`
	GlobalSort         bool                  `yaml:"global_sort" json:"global_sort"`
	MinRating          float64               `yaml:"min_rating" json:"min_rating"`
	MinDiscountPercent int                   `yaml:"min_discount_percent" json:"min_discount_percent"`
	Availability       []models.Availability `yaml:"availability,omitempty" json:"availability,omitempty"`
}

// Config holds static aggregator configuration.
type Config struct {
	Sources              []string `yaml:"sources"`
	MaxProductsPerSource int      `yaml:"max_products_per_source"`
	ProductsPerPage      int      `yaml:"products_per_page"`
	PageConcurrency      int      `yaml:"page_concurrency"`
	PageTimeout          Duration `yaml:"page_timeout"`
	JitterMin            Duration `yaml:"jitter_min"`
	JitterMax            Duration `yaml:"jitter_max"`
	UserAgent            string   `yaml:"user_agent"`
	Headless             bool     `yaml:"headless"`
	BrowserURL           string   `yaml:"browser_url"`
	MetricsAddr          string   `yaml:"metrics_addr"`
	OutputFile           string   `yaml:"output_file"`
	OutputFormat         string   `yaml:"output_format"` // csv, json, or dual
	RunInterval          Duration `yaml:"run_interval"`
	Verbose              bool     `yaml:"verbose"`

	Queries  []models.SearchQuery `yaml:"queries,omitempty"`
	Settings Settings             `yaml:"settings"`
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		Sources:              []string{"amazon", "flipkart", "snapdeal"},
		MaxProductsPerSource: 150,
		ProductsPerPage:      24,
		PageConcurrency:      7,
		PageTimeout:          Duration(20 * time.Second),
		JitterMin:            Duration(1500 * time.Millisecond),
		JitterMax:            Duration(3 * time.Second),
		UserAgent:            "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Headless:             true,
		OutputFile:           "output/results.json",
		OutputFormat:         "json",
		Verbose:              false,
		Settings: Settings{
			SortBy: SortPriceAsc,
		},
	}
}

// PageCount is the fixed number of result pages each source fetches:
// ceil(MaxProductsPerSource / ProductsPerPage).
func (c *Config) PageCount() int {
	return (c.MaxProductsPerSource + c.ProductsPerPage - 1) / c.ProductsPerPage
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	if c.MaxProductsPerSource <= 0 {
		return fmt.Errorf("max products per source must be positive")
	}
	if c.ProductsPerPage <= 0 {
		return fmt.Errorf("products per page must be positive")
	}
	if c.PageConcurrency <= 0 {
		return fmt.Errorf("page concurrency must be positive")
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be positive")
	}
	if c.JitterMin < 0 {
		return fmt.Errorf("jitter min cannot be negative")
	}
	if c.JitterMax < c.JitterMin {
		return fmt.Errorf("jitter max (%s) cannot be below jitter min (%s)", c.JitterMax, c.JitterMin)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.RunInterval < 0 {
		return fmt.Errorf("run interval cannot be negative")
	}
	switch c.Settings.SortBy {
	case SortPriceAsc, SortPriceDesc, SortRatingAsc, SortRatingDesc, SortDiscountDesc:
	default:
		return fmt.Errorf("unknown sort criterion %q", c.Settings.SortBy)
	}
	if c.Settings.MinRating < 0 || c.Settings.MinRating > 5 {
		return fmt.Errorf("min rating must be within 0..5")
	}
	if c.Settings.MinDiscountPercent < 0 || c.Settings.MinDiscountPercent > 100 {
		return fmt.Errorf("min discount must be within 0..100")
	}
	return nil
}

// EnvString reads a string environment override.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}
