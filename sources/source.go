// Package sources implements the per-site search engines. Each source
// paginates one site's results with bounded page-level concurrency and
// degrades to partial output on page failures; only a wholesale failure
// surfaces as an error.
package sources

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"pricescout/models"
	"pricescout/parser"
)

// Source is one e-commerce site being queried. Search returns a
// deduplicated, validated product list; page-level failures degrade to
// a partial (possibly empty) list, and an error is returned only when
// the source failed wholesale.
type Source interface {
	ID() string
	Label() string
	Search(ctx context.Context, query string) ([]models.Product, error)
}

// mergePages flattens per-page results in ascending page order,
// dropping invalid records and URL duplicates (first occurrence wins),
// then truncates to maxProducts. The seen-set is a bounded LRU so a
// misbehaving site cannot grow it without limit.
func mergePages(pages [][]models.Product, maxProducts int) []models.Product {
	capacity := maxProducts * 4
	if capacity < 16 {
		capacity = 16
	}
	seen, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil
	}

	merged := make([]models.Product, 0, maxProducts)
	for _, page := range pages {
		for i := range page {
			p := page[i]
			if parser.ValidateProduct(&p) != nil {
				continue
			}
			if _, dup := seen.Get(p.URL); dup {
				continue
			}
			seen.Add(p.URL, struct{}{})
			merged = append(merged, p)
			if len(merged) >= maxProducts {
				return merged
			}
		}
	}
	return merged
}
