// Package parser normalises free-text price, rating, and availability
// strings into the canonical fields of models.Product. All functions are
// pure: bad input yields a zero value or ok=false, never an error.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"pricescout/models"
)

var (
	priceRe  = regexp.MustCompile(`\d[\d,]*(?:\.\d{1,2})?`)
	ratingRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	digitsRe = regexp.MustCompile(`\d[\d,]*`)
)

// ExtractPrice pulls the first numeric amount out of a price string.
// Currency symbols, thousands separators, and whitespace are ignored.
// Returns ok=false when no parseable amount is present.
func ExtractPrice(text string) (float64, bool) {
	match := priceRe.FindString(text)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", "")
	value, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// currencyMarkers is scanned in priority order; the first hit wins.
var currencyMarkers = []struct {
	currency models.Currency
	markers  []string
}{
	{models.CurrencyINR, []string{"₹", "rs.", "rs ", "inr", "rupee"}},
	{models.CurrencyUSD, []string{"$", "usd", "dollar"}},
	{models.CurrencyEUR, []string{"€", "eur"}},
	{models.CurrencyGBP, []string{"£", "gbp", "pound"}},
}

// DetectCurrency finds a currency symbol or keyword in text,
// case-insensitive, with INR > USD > EUR > GBP priority.
func DetectCurrency(text string) models.Currency {
	lower := strings.ToLower(text)
	for _, entry := range currencyMarkers {
		for _, marker := range entry.markers {
			if strings.Contains(lower, marker) {
				return entry.currency
			}
		}
	}
	return models.CurrencyUnknown
}

// DiscountPercent computes the rounded percentage saved between the
// original and current price. Returns 0 unless original > current > 0,
// so the result is always within 0..100.
func DiscountPercent(current, original float64) int {
	if current <= 0 || original <= 0 || original <= current {
		return 0
	}
	return int(math.Round((original - current) / original * 100))
}

// ParseRating extracts a star rating, clamped to the 0..5 scale.
func ParseRating(text string) (float64, bool) {
	match := ratingRe.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	if value < 0 {
		value = 0
	}
	if value > 5 {
		value = 5
	}
	return value, true
}

// ParseReviewCount extracts a review count such as "1,234 ratings".
func ParseReviewCount(text string) (int, bool) {
	match := digitsRe.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// ParseAvailability maps free availability text onto the enum.
// Empty text means the site did not say, which we read as in stock:
// search result pages rarely list unbuyable items.
func ParseAvailability(text string) models.Availability {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "":
		return models.InStock
	case strings.Contains(lower, "out of stock"), strings.Contains(lower, "sold out"),
		strings.Contains(lower, "unavailable"):
		return models.OutOfStock
	case strings.Contains(lower, "pre-order"), strings.Contains(lower, "preorder"),
		strings.Contains(lower, "pre order"):
		return models.PreOrder
	case strings.Contains(lower, "in stock"), strings.Contains(lower, "available"):
		return models.InStock
	default:
		return models.AvailUnknown
	}
}

// ValidateProduct ensures extraction captured the required fields.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product missing title")
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("product missing url for %s", p.Title)
	}
	if p.Price <= 0 {
		return fmt.Errorf("product %s has non-positive price", p.Title)
	}
	return nil
}
