package extract

import (
	"testing"

	"pricescout/models"
)

const gridHTML = `<html><body>
<div class="results">
  <div class="card">
    <h2 class="name"><a class="link" href="/p/chair-1">Oak Chair</a></h2>
    <span class="price">₹2,499</span>
    <span class="mrp">₹3,999</span>
    <img src="/img/chair-1.jpg">
    <span class="stars" aria-label="4.2 out of 5 stars">4.2</span>
    <span class="reviews">1,204 ratings</span>
  </div>
  <div class="card">
    <h2 class="name"><a class="link" href="/p/chair-2">Pine Chair</a></h2>
    <span class="price">₹1,999</span>
    <img src="/img/chair-2.jpg">
  </div>
  <div class="card">
    <h2 class="name"><a class="link" href="/p/broken">No Price Chair</a></h2>
    <span class="price">coming soon</span>
  </div>
</div>
</body></html>`

var gridGroup = SelectorGroup{
	Container:     "div.card",
	Title:         "h2.name a",
	Price:         "span.price",
	OriginalPrice: "span.mrp",
	URL:           "h2.name a",
	URLAttr:       "href",
	Image:         "img",
	Rating:        "span.stars",
	RatingAttr:    "aria-label",
	Reviews:       "span.reviews",
}

func TestProductsStructured(t *testing.T) {
	got := Products(gridHTML, gridGroup, "https://shop.example", "shop", "chair")
	if len(got) != 2 {
		t.Fatalf("Products returned %d records, want 2", len(got))
	}

	first := got[0]
	if first.Title != "Oak Chair" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.URL != "https://shop.example/p/chair-1" {
		t.Fatalf("url = %q, relative href not resolved", first.URL)
	}
	if first.Price != 2499 {
		t.Fatalf("price = %v, want 2499", first.Price)
	}
	if first.Currency != models.CurrencyINR {
		t.Fatalf("currency = %q, want INR", first.Currency)
	}
	if first.OriginalPrice != 3999 {
		t.Fatalf("original price = %v, want 3999", first.OriginalPrice)
	}
	if first.DiscountPercent != 38 {
		t.Fatalf("discount = %d, want 38", first.DiscountPercent)
	}
	if first.Rating == nil || *first.Rating != 4.2 {
		t.Fatalf("rating = %v, want 4.2", first.Rating)
	}
	if first.ReviewCount == nil || *first.ReviewCount != 1204 {
		t.Fatalf("review count = %v, want 1204", first.ReviewCount)
	}
	if first.SourceID != "shop" || first.OriginalQuery != "chair" {
		t.Fatalf("source/query not stamped: %+v", first)
	}

	second := got[1]
	if second.Rating != nil || second.ReviewCount != nil {
		t.Fatalf("optional fields should stay nil when absent")
	}
	if second.DiscountPercent != 0 {
		t.Fatalf("discount without mrp = %d, want 0", second.DiscountPercent)
	}
}

func TestProductsEmptyOnSelectorMiss(t *testing.T) {
	miss := gridGroup
	miss.Container = "div.nonexistent"
	if got := Products(gridHTML, miss, "https://shop.example", "shop", "chair"); len(got) != 0 {
		t.Fatalf("expected no products, got %d", len(got))
	}
}

const fallbackHTML = `<html><body>
<div class="tile">
  <a href="/item/99">Walnut Desk Lamp</a>
  <div>₹899</div>
  <img src="/img/lamp.jpg">
</div>
<div class="nav">
  <a href="#top">Back to top</a>
  <a href="javascript:void(0)">Menu</a>
</div>
</body></html>`

func TestFallbackHeuristic(t *testing.T) {
	got := Fallback(fallbackHTML, "https://shop.example", "shop", "lamp")
	if len(got) != 1 {
		t.Fatalf("Fallback returned %d records, want 1", len(got))
	}
	p := got[0]
	if p.Title != "Walnut Desk Lamp" {
		t.Fatalf("title = %q", p.Title)
	}
	if p.URL != "https://shop.example/item/99" {
		t.Fatalf("url = %q", p.URL)
	}
	if p.Price != 899 {
		t.Fatalf("price = %v", p.Price)
	}
	if p.ImageURL != "https://shop.example/img/lamp.jpg" {
		t.Fatalf("image = %q", p.ImageURL)
	}
}

func TestFallbackIgnoresPricelessAnchors(t *testing.T) {
	html := `<html><body><a href="/about">About us and our story</a></body></html>`
	if got := Fallback(html, "https://shop.example", "shop", "x"); len(got) != 0 {
		t.Fatalf("expected no products, got %d", len(got))
	}
}
