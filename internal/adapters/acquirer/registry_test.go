package acquirer

import (
	"testing"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedStrategy struct {
	ports.AcquirerStrategy
	name string
}

func (s namedStrategy) Provider() string { return s.name }

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(namedStrategy{name: "adyen"}, namedStrategy{name: "transfer"})

	s, err := r.Get("adyen")
	require.NoError(t, err)
	assert.Equal(t, "adyen", s.Provider())

	_, err = r.Get("stripe")
	assert.ErrorIs(t, err, domain.ErrAcquirerNotFound)
	assert.True(t, domain.IsNotFoundError(err))
}

func TestRegistry_Providers(t *testing.T) {
	r := NewRegistry(namedStrategy{name: "transfer"}, namedStrategy{name: "adyen"}, namedStrategy{name: "demo"})
	assert.Equal(t, []string{"adyen", "demo", "transfer"}, r.Providers())
}

func TestRegistry_MissingProviders(t *testing.T) {
	r := NewRegistry(namedStrategy{name: "adyen"})
	missing := r.MissingProviders([]*domain.Acquirer{
		{Provider: "adyen"},
		{Provider: "stripe"},
		{Provider: "stripe"},
	})
	assert.Equal(t, []string{"stripe"}, missing)
}
