// Package extract turns rendered HTML into product records. The primary
// strategy walks a per-site selector group; the heuristic fallback
// re-derives records straight from the DOM when the selectors come up
// empty, which absorbs upstream markup changes without failing a page.
package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricescout/models"
	"pricescout/parser"
)

// SelectorGroup names the CSS selectors for one site's result grid.
// Attr fields are empty when the value lives in node text.
type SelectorGroup struct {
	Container     string
	Title         string
	TitleAttr     string
	Price         string
	OriginalPrice string
	URL           string
	URLAttr       string
	Image         string
	ImageAttr     string
	Rating        string
	RatingAttr    string
	Reviews       string
	Availability  string
}

// Products runs the structured strategy over html. Records missing a
// title, URL, or positive price are dropped here, before they enter the
// model. Relative URLs are resolved against baseURL.
func Products(html string, group SelectorGroup, baseURL, sourceID, query string) []models.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var out []models.Product
	doc.Find(group.Container).Each(func(_ int, card *goquery.Selection) {
		title := fieldValue(card, group.Title, group.TitleAttr)
		href := fieldValue(card, group.URL, group.URLAttr)
		priceText := fieldValue(card, group.Price, "")

		price, ok := parser.ExtractPrice(priceText)
		if title == "" || href == "" || !ok || price <= 0 {
			return
		}

		p := models.Product{
			Title:         title,
			URL:           absoluteURL(base, href),
			Price:         price,
			Currency:      parser.DetectCurrency(priceText),
			Availability:  parser.ParseAvailability(fieldValue(card, group.Availability, "")),
			ImageURL:      imageURL(base, card, group),
			SourceID:      sourceID,
			OriginalQuery: query,
			ExtractedAt:   time.Now(),
		}

		if orig, ok := parser.ExtractPrice(fieldValue(card, group.OriginalPrice, "")); ok && orig > 0 {
			p.OriginalPrice = orig
			p.DiscountPercent = parser.DiscountPercent(price, orig)
		}
		if rating, ok := parser.ParseRating(fieldValue(card, group.Rating, group.RatingAttr)); ok {
			p.Rating = &rating
		}
		if reviews, ok := parser.ParseReviewCount(fieldValue(card, group.Reviews, "")); ok {
			p.ReviewCount = &reviews
		}

		out = append(out, p)
	})
	return out
}

// Fallback is the heuristic tier: scan anchors for price-looking text
// in themselves or a nearby parent, and rebuild records from whatever
// the rendered DOM offers.
func Fallback(html, baseURL, sourceID, query string) []models.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var out []models.Product
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		scope := a
		priceText := priceLikeText(scope)
		// Climb a couple of levels: price and link often share a card
		// ancestor rather than the anchor itself.
		for depth := 0; priceText == "" && depth < 3; depth++ {
			scope = scope.Parent()
			if scope.Length() == 0 {
				return
			}
			priceText = priceLikeText(scope)
		}
		price, ok := parser.ExtractPrice(priceText)
		if !ok || price <= 0 {
			return
		}

		title := strings.TrimSpace(a.Text())
		if title == "" {
			title, _ = a.Attr("title")
			title = strings.TrimSpace(title)
		}
		if title == "" || len(title) < 3 {
			return
		}

		img := ""
		if src, exists := scope.Find("img").First().Attr("src"); exists {
			img = absoluteURL(base, src)
		}

		out = append(out, models.Product{
			Title:         title,
			URL:           absoluteURL(base, href),
			Price:         price,
			Currency:      parser.DetectCurrency(priceText),
			Availability:  models.AvailUnknown,
			ImageURL:      img,
			SourceID:      sourceID,
			OriginalQuery: query,
			ExtractedAt:   time.Now(),
		})
	})
	return out
}

func fieldValue(scope *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	node := scope.Find(selector).First()
	if node.Length() == 0 {
		return ""
	}
	if attr != "" {
		value, _ := node.Attr(attr)
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(node.Text())
}

func imageURL(base *url.URL, card *goquery.Selection, group SelectorGroup) string {
	attr := group.ImageAttr
	if attr == "" {
		attr = "src"
	}
	src := fieldValue(card, group.Image, attr)
	if src == "" {
		return ""
	}
	return absoluteURL(base, src)
}

func absoluteURL(base *url.URL, href string) string {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(parsed).String()
}

var priceMarkers = []string{"₹", "$", "€", "£", "rs.", "inr"}

// priceLikeText returns the scope's own text when it contains a
// currency marker, otherwise looks for one obvious price child.
func priceLikeText(scope *goquery.Selection) string {
	text := strings.TrimSpace(scope.Text())
	lower := strings.ToLower(text)
	for _, marker := range priceMarkers {
		if strings.Contains(lower, marker) {
			return text
		}
	}
	return ""
}
