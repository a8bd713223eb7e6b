package acquirer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
)

// Registry resolves acquirer strategies by provider name
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]ports.AcquirerStrategy
}

var _ ports.AcquirerRegistry = (*Registry)(nil)

// NewRegistry creates a registry holding strategies
func NewRegistry(strategies ...ports.AcquirerStrategy) *Registry {
	r := &Registry{strategies: make(map[string]ports.AcquirerStrategy)}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the strategy of its provider
func (r *Registry) Register(s ports.AcquirerStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Provider()] = s
}

// Get returns the strategy of provider
func (r *Registry) Get(provider string) (ports.AcquirerStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[provider]
	if !ok {
		return nil, domain.ErrAcquirerNotFound.WithDetail("provider", provider)
	}
	return s, nil
}

// Providers lists the registered providers in alphabetical order
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for p := range r.strategies {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MissingProviders returns the providers of acquirers that have no registered strategy
func (r *Registry) MissingProviders(acquirers []*domain.Acquirer) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, acq := range acquirers {
		if seen[acq.Provider] {
			continue
		}
		seen[acq.Provider] = true
		if _, err := r.Get(acq.Provider); err != nil {
			missing = append(missing, acq.Provider)
		}
	}
	return missing
}

// String implements fmt.Stringer
func (r *Registry) String() string {
	return fmt.Sprintf("acquirer registry %v", r.Providers())
}
