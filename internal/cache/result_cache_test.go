package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplift/buyplan/internal/config"
	"github.com/oplift/buyplan/internal/domain"
)

func sampleRequest(budget float64) domain.AllocationRequest {
	return domain.AllocationRequest{
		Budget: budget,
		Products: []domain.Product{
			{SKU: "SKU-1", SupplierKey: "ACME", SupplierPrice: 10, MonthlySales: 100},
		},
		Suppliers: []domain.SupplierTerms{
			{SupplierKey: "ACME", Country: "UK"},
		},
	}
}

func TestRequestKeyIsDeterministic(t *testing.T) {
	a, err := RequestKey(sampleRequest(1000))
	require.NoError(t, err)
	b, err := RequestKey(sampleRequest(1000))
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical requests must hash identically")
	assert.True(t, strings.HasPrefix(a, allocationKeyPrefix+":"))
}

func TestRequestKeyVariesWithRequest(t *testing.T) {
	a, err := RequestKey(sampleRequest(1000))
	require.NoError(t, err)
	b, err := RequestKey(sampleRequest(2000))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewResultCacheDisabledIsNoop(t *testing.T) {
	c, err := NewResultCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	req := sampleRequest(1000)

	require.NoError(t, c.Set(ctx, req, &domain.AllocationResult{}))
	_, found, err := c.Get(ctx, req)
	require.NoError(t, err)
	assert.False(t, found, "the noop cache never hits")
	assert.NoError(t, c.InvalidateAll(ctx))
}
