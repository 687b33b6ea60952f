package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplift/buyplan/internal/domain"
)

func TestBuildBundlesSingleSKUFillsBudget(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	prod := testProduct()
	prod.CaseSize = 1
	prod.SupplierPrice = 100
	prod.AmazonPrice = 150
	prod.AmazonFees = 10
	prod.VATPerUnit = 5

	bundles := p.BuildBundles(ukTerms(), []domain.Product{prod}, 1000)
	require.NotEmpty(t, bundles)

	// Equal monthly ROI across counts; the tie goes to the fullest spend.
	best := bundles[0]
	require.Len(t, best.Options, 1)
	assert.Equal(t, 10, best.Options[0].Units)
	assert.Equal(t, 1000.0, best.CostASF)
}

func TestBuildBundlesMOQFilter(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	terms := ukTerms()
	terms.MOQGBP = 500

	slowMover := func(sku string) domain.Product {
		prod := testProduct()
		prod.SKU = sku
		prod.CaseSize = 1
		prod.SupplierPrice = 300
		prod.AmazonPrice = 450
		prod.MonthlySales = 1
		return prod
	}

	bundles := p.BuildBundles(terms, []domain.Product{slowMover("A"), slowMover("B")}, 1000)
	require.NotEmpty(t, bundles, "SKUs below MOQ alone must still combine across the minimum")

	for _, b := range bundles {
		assert.GreaterOrEqual(t, b.CostASF, 500.0, "every bundle must clear the MOQ")
	}

	best := bundles[0]
	assert.Len(t, best.Options, 2, "combination of both SKUs reaches the MOQ")
	assert.Equal(t, 600.0, best.CostASF)
}

func TestBuildBundlesMOQUnreachable(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	terms := ukTerms()
	terms.MOQGBP = 5000

	bundles := p.BuildBundles(terms, []domain.Product{testProduct()}, 1000)
	assert.Empty(t, bundles)
}

func TestBuildBundlesRespectsBudget(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	products := make([]domain.Product, 0, 6)
	for _, sku := range []string{"A", "B", "C", "D", "E", "F"} {
		prod := testProduct()
		prod.SKU = sku
		products = append(products, prod)
	}

	bundles := p.BuildBundles(ukTerms(), products, 750)
	require.NotEmpty(t, bundles)
	for _, b := range bundles {
		assert.LessOrEqual(t, b.CostASF, 750.0)
	}
}

func TestBuildBundlesOrderingAndCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBundlesPerSupplier = 2
	p := NewPricer(cfg, nil, domain.FreightConfig{}, nil)

	products := make([]domain.Product, 0, 5)
	for i, sku := range []string{"A", "B", "C", "D", "E"} {
		prod := testProduct()
		prod.SKU = sku
		prod.AmazonPrice = 20 + float64(i) // varying margins, varying ROI
		products = append(products, prod)
	}

	bundles := p.BuildBundles(ukTerms(), products, 2000)
	require.NotEmpty(t, bundles)
	assert.LessOrEqual(t, len(bundles), 2)

	for i := 1; i < len(bundles); i++ {
		assert.GreaterOrEqual(t, bundles[i-1].MonthlyROI, bundles[i].MonthlyROI)
	}
}

func TestBuildBundlesNoEligibleProducts(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	prod := testProduct()
	prod.SupplierPrice = 0
	assert.Nil(t, p.BuildBundles(ukTerms(), []domain.Product{prod}, 1000))
}
