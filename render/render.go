// Package render wraps the headless browser behind narrow interfaces so
// sources can be tested without Chrome. The production implementation
// drives Chrome through Rod with stealth pages.
package render

import "context"

// Browser hands out page handles. Implementations must allow concurrent
// NewPage calls; callers bound their own fan-out.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browser tab. Every method honours ctx cancellation, and
// Close must be safe to call on every exit path.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor polls the given JS predicate until it returns true or ctx
	// expires. The predicate must be a zero-argument function expression.
	WaitFor(ctx context.Context, predicateJS string) error
	ScrollToBottom(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}
