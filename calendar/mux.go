package calendar

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/guilherme-santos/calsync/internal"
)

var ErrUnknownProvider = errors.New("calendar: unknown provider")

// Factory builds a provider client for a single account.
type Factory func(internal.ProviderConfig) (internal.Provider, error)

type Mux struct {
	mu        sync.RWMutex
	factories map[internal.Platform]Factory
}

func NewMux() *Mux {
	return &Mux{
		factories: make(map[internal.Platform]Factory),
	}
}

func (m *Mux) New(platform internal.Platform, cfg internal.ProviderConfig) (internal.Provider, error) {
	m.mu.RLock()
	factory, ok := m.factories[platform]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, platform)
	}
	return factory(cfg)
}

func (m *Mux) Register(platform internal.Platform, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.factories[platform] = factory
}

func (m *Mux) Platforms() []internal.Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()

	platforms := make([]internal.Platform, 0, len(m.factories))
	for p := range m.factories {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
