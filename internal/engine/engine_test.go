package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplift/buyplan/internal/domain"
)

func allocationProduct(sku, supplier string, price float64) domain.Product {
	return domain.Product{
		SKU:           sku,
		Title:         "Ceramic Mug Set",
		SupplierKey:   supplier,
		SupplierPrice: price,
		AmazonPrice:   price * 2,
		AmazonFees:    price * 0.2,
		VATPerUnit:    price * 0.1,
		MonthlySales:  300,
		SellerCount:   1,
		CaseSize:      1,
		LengthCm:      20,
		WidthCm:       20,
		HeightCm:      20,
		WeightKg:      1,
	}
}

func ukSupplier(key, name string) domain.SupplierTerms {
	return domain.SupplierTerms{
		SupplierKey:   key,
		SupplierName:  name,
		Country:       "UK",
		FreightMode:   domain.ModeRoad,
		PackagingType: domain.PackagingBox,
	}
}

func TestAllocateInputValidation(t *testing.T) {
	e := New(DefaultConfig())

	_, err := e.Allocate(domain.AllocationRequest{Budget: 0})
	require.Error(t, err)
	assert.True(t, IsInputError(err))

	_, err = e.Allocate(domain.AllocationRequest{Budget: 100})
	require.Error(t, err)
	assert.True(t, IsInputError(err))

	// All products ineligible.
	ineligible := allocationProduct("X", "ACME", 10)
	ineligible.MonthlySales = 0
	_, err = e.Allocate(domain.AllocationRequest{
		Budget:   100,
		Products: []domain.Product{ineligible},
	})
	require.Error(t, err)
	assert.True(t, IsInputError(err))
}

func TestAllocateSingleSupplierFillsBudget(t *testing.T) {
	e := New(DefaultConfig())

	result, err := e.Allocate(domain.AllocationRequest{
		Budget:    1000,
		Products:  []domain.Product{allocationProduct("SKU-1", "ACME", 100)},
		Suppliers: []domain.SupplierTerms{ukSupplier("ACME", "Acme Ltd")},
	})
	require.NoError(t, err)

	require.Len(t, result.Suppliers, 1)
	assert.Equal(t, "Acme Ltd", result.Suppliers[0].SupplierName)
	assert.Equal(t, 10, result.Summary.TotalUnits, "zero-freight UK spend buys budget/price units")
	assert.Equal(t, 1000.0, result.Summary.TotalCostASF)
	assert.Equal(t, 0.0, result.Summary.RemainingBudget)
	assert.Positive(t, result.Summary.ExpectedProfit)
}

func TestAllocateTwoSuppliersExactBudget(t *testing.T) {
	e := New(DefaultConfig())

	// Each supplier's best bundle is one 5-unit case at 100/unit, so the two
	// together land exactly on the budget.
	prodA := allocationProduct("SKU-A", "ALPHA", 100)
	prodA.CaseSize = 5
	prodA.MonthlySales = 12.5
	prodB := allocationProduct("SKU-B", "BETA", 100)
	prodB.CaseSize = 5
	prodB.MonthlySales = 12.5

	result, err := e.Allocate(domain.AllocationRequest{
		Budget:   1000,
		Products: []domain.Product{prodA, prodB},
		Suppliers: []domain.SupplierTerms{
			ukSupplier("ALPHA", "Alpha Ltd"),
			ukSupplier("BETA", "Beta Ltd"),
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Suppliers, 2, "an exact two-way fit keeps both suppliers")
	assert.Equal(t, 0.0, result.Summary.RemainingBudget)
	assert.Equal(t, 1000.0, result.Summary.TotalCostASF)

	// Suppliers are ordered by key.
	assert.Equal(t, "ALPHA", result.Suppliers[0].SupplierKey)
	assert.Equal(t, "BETA", result.Suppliers[1].SupplierKey)
}

func TestAllocateMissingTermsUsesDefaults(t *testing.T) {
	e := New(DefaultConfig())

	// No supplier terms on file: products still price as a generic overseas
	// box shipment (with the FX fee applied).
	result, err := e.Allocate(domain.AllocationRequest{
		Budget:        1000,
		Products:      []domain.Product{allocationProduct("SKU-1", "MYSTERY", 50)},
		FreightConfig: domain.FreightConfig{RatePerKG: 1, HandlingFee: 5},
	})
	require.NoError(t, err)

	require.Len(t, result.Suppliers, 1)
	sup := result.Suppliers[0]
	assert.Equal(t, "MYSTERY", sup.SupplierKey)
	assert.Equal(t, domain.FreightMethodGeneric, sup.Freight.Method)
	assert.Positive(t, sup.Freight.CurrencyFee)
}

func TestAllocateNeverExceedsBudget(t *testing.T) {
	e := New(DefaultConfig())

	products := []domain.Product{
		allocationProduct("SKU-1", "ALPHA", 37),
		allocationProduct("SKU-2", "ALPHA", 89),
		allocationProduct("SKU-3", "BETA", 53),
		allocationProduct("SKU-4", "GAMMA", 211),
	}
	suppliers := []domain.SupplierTerms{
		ukSupplier("ALPHA", "Alpha Ltd"),
		ukSupplier("BETA", "Beta Ltd"),
		ukSupplier("GAMMA", "Gamma Ltd"),
	}

	for _, budget := range []float64{150, 500, 1234.56, 9999} {
		result, err := e.Allocate(domain.AllocationRequest{
			Budget:    budget,
			Products:  products,
			Suppliers: suppliers,
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, result.Summary.TotalCostASF, budget)
		assert.GreaterOrEqual(t, result.Summary.RemainingBudget, 0.0)
	}
}

func TestAllocateNormalizesSupplierKeys(t *testing.T) {
	e := New(DefaultConfig())

	prod := allocationProduct("SKU-1", "  acme   trading ", 100)
	result, err := e.Allocate(domain.AllocationRequest{
		Budget:    1000,
		Products:  []domain.Product{prod},
		Suppliers: []domain.SupplierTerms{ukSupplier("Acme Trading", "Acme Trading Ltd")},
	})
	require.NoError(t, err)

	require.Len(t, result.Suppliers, 1)
	assert.Equal(t, "ACME TRADING", result.Suppliers[0].SupplierKey)
	assert.Equal(t, "Acme Trading Ltd", result.Suppliers[0].SupplierName)
	assert.Equal(t, 0.0, result.Suppliers[0].Freight.CurrencyFee, "terms joined via normalization mark the supplier as UK")
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(NewInputError("bad")))
	assert.False(t, IsInputError(assert.AnError))
	assert.False(t, IsInputError(nil))
}
