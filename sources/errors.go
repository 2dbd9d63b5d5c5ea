package sources

import (
	"context"
	"errors"
	"fmt"
)

// ErrNavigationTimeout indicates a page navigation or content wait
// exceeded its deadline.
type ErrNavigationTimeout struct {
	Err error
}

func (e ErrNavigationTimeout) Error() string {
	return fmt.Errorf("navigation_timeout: %w", e.Err).Error()
}

func (e ErrNavigationTimeout) Unwrap() error {
	return e.Err
}

// ErrExtractionEmpty indicates both extraction strategies produced zero
// products for a page that rendered.
type ErrExtractionEmpty struct {
	URL string
}

func (e ErrExtractionEmpty) Error() string {
	return fmt.Sprintf("extraction_empty: no products at %s", e.URL)
}

// ErrSourceUnreachable indicates a source failed wholesale: every page
// task errored and nothing was extracted.
type ErrSourceUnreachable struct {
	Source string
	Err    error
}

func (e ErrSourceUnreachable) Error() string {
	return fmt.Errorf("source_unreachable: %s: %w", e.Source, e.Err).Error()
}

func (e ErrSourceUnreachable) Unwrap() error {
	return e.Err
}

func classifyPageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNavigationTimeout{Err: err}
	}
	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrNavigationTimeout
	if errors.As(err, &timeout) {
		return "navigation_timeout"
	}
	var empty ErrExtractionEmpty
	if errors.As(err, &empty) {
		return "extraction_empty"
	}
	var unreachable ErrSourceUnreachable
	if errors.As(err, &unreachable) {
		return "source_unreachable"
	}
	return "other"
}
