package sources

import (
	"fmt"

	"pricescout/config"
	"pricescout/render"
)

// Registry holds the enabled sources in stable registration order.
type Registry struct {
	order []string
	byID  map[string]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Source)}
}

// Register adds a source. Re-registering an ID replaces the source but
// keeps its original position.
func (r *Registry) Register(s Source) {
	if _, exists := r.byID[s.ID()]; !exists {
		r.order = append(r.order, s.ID())
	}
	r.byID[s.ID()] = s
}

// Get looks a source up by ID.
func (r *Registry) Get(id string) (Source, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Enabled returns all sources in registration order.
func (r *Registry) Enabled() []Source {
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports the number of registered sources.
func (r *Registry) Len() int {
	return len(r.order)
}

// Build wires up the sources named in cfg.Sources. Rendered sources
// share the given browser; an unknown source name is a configuration
// error.
func Build(cfg *config.Config, browser render.Browser, metrics *Metrics) (*Registry, error) {
	registry := NewRegistry()
	for _, name := range cfg.Sources {
		switch name {
		case "amazon":
			registry.Register(NewAmazonSource(browser, cfg, metrics))
		case "flipkart":
			registry.Register(NewFlipkartSource(browser, cfg, metrics))
		case "snapdeal":
			registry.Register(NewSnapdealSource(cfg, metrics))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return registry, nil
}
