// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package carbon

import (
	"sync"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// Registry selects a provider for a region. Providers are consulted in
// registration order and the first whose SupportsRegion matches wins; when
// none match the fallback is returned.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	fallback  Provider
}

// NewRegistry creates a Registry. The fallback is required and is also
// registered last so it takes part in the ordered walk.
func NewRegistry(fallback Provider, providers ...Provider) (*Registry, error) {
	if fallback == nil {
		return nil, l5err.New(l5err.CodeCarbonRegistryNoFallback, "carbon registry requires a fallback provider")
	}
	r := &Registry{fallback: fallback}
	for _, p := range providers {
		if p != nil {
			r.providers = append(r.providers, p)
		}
	}
	r.providers = append(r.providers, fallback)
	return r, nil
}

// Register adds p ahead of the fallback but after every provider
// registered before it.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	last := len(r.providers) - 1
	r.providers = append(r.providers[:last], p, r.fallback)
}

// ForRegion returns the provider serving region.
func (r *Registry) ForRegion(region string) Provider {
	normalized := NormalizeRegion(region)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.SupportsRegion(normalized) {
			return p
		}
	}
	return r.fallback
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, l5err.New(l5err.CodeCarbonProviderNotFound, "carbon provider not found: "+id,
		l5err.FieldProvider(id))
}

// Providers returns the providers in priority order, fallback last.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Fallback returns the provider used when no other provider matches.
func (r *Registry) Fallback() Provider {
	return r.fallback
}
