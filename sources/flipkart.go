package sources

import (
	"fmt"
	"net/url"

	"pricescout/config"
	"pricescout/extract"
	"pricescout/render"
)

// NewFlipkartSource builds the Flipkart search source. Flipkart renders
// the whole grid client-side, so the heuristic fallback matters here:
// the listed selectors churn with their frontend releases.
func NewFlipkartSource(browser render.Browser, cfg *config.Config, metrics *Metrics) *RenderedSource {
	return newRenderedSource(siteProfile{
		id:      "flipkart",
		label:   "Flipkart",
		baseURL: "https://www.flipkart.com",
		searchURL: func(query string, page int) string {
			return fmt.Sprintf("https://www.flipkart.com/search?q=%s&page=%d", url.QueryEscape(query), page)
		},
		selectors: extract.SelectorGroup{
			Container:     "div[data-id]",
			Title:         "div.KzDlHZ, a.wjcEIp, a.WKTcLC",
			Price:         "div.Nx9bqj",
			OriginalPrice: "div.yRaY8j",
			URL:           "a.CGtC98, a.wjcEIp, a.WKTcLC",
			URLAttr:       "href",
			Image:         "img.DByuf4",
			Rating:        "div.XQDdHH",
			Reviews:       "span.Wphh3N",
		},
		waitJS: `() => document.querySelectorAll('div[data-id]').length > 0`,
	}, browser, cfg, metrics)
}
