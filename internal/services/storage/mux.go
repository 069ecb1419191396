package storage

import (
	"context"
	"fmt"
)

// Mux writes to a primary store and routes reads by locator scheme, so
// rows written under an earlier backend stay readable.
type Mux struct {
	primary  Store
	byScheme map[string]Store
}

// NewMux returns a Mux writing to primary under primaryScheme
func NewMux(primaryScheme string, primary Store) *Mux {
	return &Mux{
		primary:  primary,
		byScheme: map[string]Store{primaryScheme: primary},
	}
}

// Handle registers a store for reads of the given schemes
func (m *Mux) Handle(store Store, schemes ...string) *Mux {
	for _, s := range schemes {
		m.byScheme[s] = store
	}
	return m
}

func (m *Mux) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return m.primary.Put(ctx, key, data, contentType)
}

func (m *Mux) Get(ctx context.Context, locator string) ([]byte, error) {
	s, err := m.route(locator)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, locator)
}

func (m *Mux) Delete(ctx context.Context, locator string) error {
	s, err := m.route(locator)
	if err != nil {
		return err
	}
	return s.Delete(ctx, locator)
}

func (m *Mux) Exists(ctx context.Context, locator string) (bool, error) {
	s, err := m.route(locator)
	if err != nil {
		return false, err
	}
	return s.Exists(ctx, locator)
}

func (m *Mux) route(locator string) (Store, error) {
	s, ok := m.byScheme[Scheme(locator)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, locator)
	}
	return s, nil
}
