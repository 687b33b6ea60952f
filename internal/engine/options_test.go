package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplift/buyplan/internal/domain"
)

func TestBuildOptionsIneligibleProduct(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	noPrice := testProduct()
	noPrice.SupplierPrice = 0
	assert.Nil(t, p.BuildOptions(noPrice, ukTerms(), 1000))

	noSales := testProduct()
	noSales.MonthlySales = 0
	assert.Nil(t, p.BuildOptions(noSales, ukTerms(), 1000))
}

func TestBuildOptionsUnaffordableIsEmptyNotNil(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	prod := testProduct() // case price 100
	options := p.BuildOptions(prod, ukTerms(), 50)

	require.NotNil(t, options, "unaffordable must be distinguishable from ineligible")
	assert.Empty(t, options)
}

func TestBuildOptionsBudgetCeiling(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	options := p.BuildOptions(testProduct(), ukTerms(), 350)
	require.Len(t, options, 3, "350 budget buys at most 3 cases at 100/case")

	for i, opt := range options {
		assert.Equal(t, i+1, opt.Cases)
		assert.Equal(t, (i+1)*10, opt.Units)
		assert.LessOrEqual(t, opt.CostASF, 350.0)
	}
}

func TestBuildOptionsVelocityCeiling(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	prod := testProduct()
	prod.MonthlySales = 50 // 2-month horizon = 100 units = 10 cases of 10
	options := p.BuildOptions(prod, ukTerms(), 100000)
	assert.Len(t, options, 10)

	// Velocity never forces zero cases; slow movers still get one case.
	prod.MonthlySales = 1
	options = p.BuildOptions(prod, ukTerms(), 100000)
	require.Len(t, options, 1)
	assert.Equal(t, 10, options[0].Units)
}

func TestBuildOptionsMaxCasesCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCasesPerOption = 5
	p := NewPricer(cfg, nil, domain.FreightConfig{}, nil)

	prod := testProduct()
	prod.MonthlySales = 100000
	options := p.BuildOptions(prod, ukTerms(), 100000)
	assert.Len(t, options, 5)
}

func TestBuildOptionsDefaultCaseSize(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)

	prod := testProduct()
	prod.CaseSize = 0
	options := p.BuildOptions(prod, ukTerms(), 35)

	require.Len(t, options, 3, "zero case size means single-unit cases")
	assert.Equal(t, 1, options[0].Units)
	assert.Equal(t, 1, options[0].CaseSize)
}
