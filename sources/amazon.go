package sources

import (
	"fmt"
	"net/url"

	"pricescout/config"
	"pricescout/extract"
	"pricescout/render"
)

// NewAmazonSource builds the Amazon India search source.
func NewAmazonSource(browser render.Browser, cfg *config.Config, metrics *Metrics) *RenderedSource {
	return newRenderedSource(siteProfile{
		id:      "amazon",
		label:   "Amazon India",
		baseURL: "https://www.amazon.in",
		searchURL: func(query string, page int) string {
			return fmt.Sprintf("https://www.amazon.in/s?k=%s&page=%d", url.QueryEscape(query), page)
		},
		selectors: extract.SelectorGroup{
			Container:     `div[data-component-type="s-search-result"]`,
			Title:         "h2 a span",
			Price:         "span.a-price > span.a-offscreen",
			OriginalPrice: "span.a-price.a-text-price span.a-offscreen",
			URL:           "h2 a",
			URLAttr:       "href",
			Image:         "img.s-image",
			Rating:        "span.a-icon-alt",
			Reviews:       "span.s-underline-text",
		},
		waitJS: `() => document.querySelectorAll('div[data-component-type="s-search-result"]').length > 0`,
	}, browser, cfg, metrics)
}
