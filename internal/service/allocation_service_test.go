package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplift/buyplan/internal/cache"
	"github.com/oplift/buyplan/internal/domain"
	"github.com/oplift/buyplan/internal/engine"
	"github.com/oplift/buyplan/internal/pipeline"
)

// memoryCache is an in-memory ResultCache for tests.
type memoryCache struct {
	entries map[string]*domain.AllocationResult
	sets    int
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*domain.AllocationResult{}}
}

func (m *memoryCache) Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error) {
	key, err := cache.RequestKey(req)
	if err != nil {
		return nil, false, err
	}
	result, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return result, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error {
	key, err := cache.RequestKey(req)
	if err != nil {
		return err
	}
	m.entries[key] = result
	m.sets++
	return nil
}

func (m *memoryCache) InvalidateAll(ctx context.Context) error {
	m.entries = map[string]*domain.AllocationResult{}
	return nil
}

func serviceRequest(budget float64) domain.AllocationRequest {
	return domain.AllocationRequest{
		Budget: budget,
		Products: []domain.Product{{
			SKU:           "SKU-1",
			Title:         "Ceramic Mug Set",
			SupplierKey:   "ACME",
			SupplierPrice: 100,
			AmazonPrice:   200,
			AmazonFees:    20,
			VATPerUnit:    10,
			MonthlySales:  300,
			SellerCount:   1,
			CaseSize:      1,
			WeightKg:      1,
		}},
		Suppliers: []domain.SupplierTerms{{
			SupplierKey:   "ACME",
			SupplierName:  "Acme Ltd",
			Country:       "UK",
			FreightMode:   domain.ModeRoad,
			PackagingType: domain.PackagingBox,
		}},
	}
}

func TestAllocateUsesCache(t *testing.T) {
	mem := newMemoryCache()
	svc := NewAllocationService(engine.DefaultConfig(), mem)
	ctx := context.Background()

	first, err := svc.Allocate(ctx, serviceRequest(1000))
	require.NoError(t, err)
	assert.Equal(t, 1, mem.sets)
	assert.Equal(t, 0, mem.hits)

	second, err := svc.Allocate(ctx, serviceRequest(1000))
	require.NoError(t, err)
	assert.Equal(t, 1, mem.sets, "a cache hit skips recomputation")
	assert.Equal(t, 1, mem.hits)
	assert.Equal(t, first, second)
}

func TestInvalidateCacheForcesRecompute(t *testing.T) {
	mem := newMemoryCache()
	svc := NewAllocationService(engine.DefaultConfig(), mem)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, serviceRequest(1000))
	require.NoError(t, err)
	require.Equal(t, 1, mem.sets)

	require.NoError(t, svc.InvalidateCache(ctx))

	_, err = svc.Allocate(ctx, serviceRequest(1000))
	require.NoError(t, err)
	assert.Equal(t, 2, mem.sets, "the repeated request recomputes after invalidation")
	assert.Equal(t, 0, mem.hits)
}

func TestAllocatePropagatesInputErrors(t *testing.T) {
	svc := NewAllocationService(engine.DefaultConfig(), nil)

	_, err := svc.Allocate(context.Background(), domain.AllocationRequest{Budget: -1})
	require.Error(t, err)
	assert.True(t, engine.IsInputError(err))
}

func TestAllocateScenarios(t *testing.T) {
	svc := NewAllocationService(engine.DefaultConfig(), cache.NewNoopResultCache())

	scenarios, err := svc.AllocateScenarios(context.Background(), serviceRequest(0), []float64{800, 200, 500})
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	// Results come back sorted by budget regardless of input order.
	assert.Equal(t, 200.0, scenarios[0].Budget)
	assert.Equal(t, 500.0, scenarios[1].Budget)
	assert.Equal(t, 800.0, scenarios[2].Budget)

	for _, s := range scenarios {
		require.NotNil(t, s.Result)
		assert.LessOrEqual(t, s.Result.Summary.TotalCostASF, s.Budget)
	}

	// A bigger budget never buys fewer units of the same request.
	assert.GreaterOrEqual(t,
		scenarios[2].Result.Summary.TotalUnits,
		scenarios[0].Result.Summary.TotalUnits)
}

func TestAllocateScenariosEmptyBudgets(t *testing.T) {
	svc := NewAllocationService(engine.DefaultConfig(), nil)

	_, err := svc.AllocateScenarios(context.Background(), serviceRequest(0), nil)
	require.Error(t, err)
	assert.True(t, engine.IsInputError(err))
}

func TestRunStageDelegatesToPipeline(t *testing.T) {
	svc := NewAllocationService(engine.DefaultConfig(), nil)
	req := serviceRequest(1000)

	state, err := svc.RunStage(context.Background(), nil, pipeline.Inputs{Budget: req.Budget}, pipeline.Data{
		Products:  req.Products,
		Suppliers: req.Suppliers,
	}, pipeline.StageLoad)
	require.NoError(t, err)
	require.NotNil(t, state.Stage1)
	assert.Equal(t, 1, state.Stage1.ProductCount)
}
