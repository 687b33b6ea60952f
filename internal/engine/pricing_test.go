package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplift/buyplan/internal/domain"
)

func testProduct() domain.Product {
	return domain.Product{
		SKU:           "SKU-1",
		Title:         "Stainless Steel Kettle",
		SupplierKey:   "ACME",
		SupplierPrice: 10,
		AmazonPrice:   25,
		AmazonFees:    3,
		VATPerUnit:    2,
		MonthlySales:  300,
		SellerCount:   1,
		CaseSize:      10,
		LengthCm:      40,
		WidthCm:       30,
		HeightCm:      20,
		WeightKg:      5,
	}
}

func ukTerms() domain.SupplierTerms {
	return domain.SupplierTerms{
		SupplierKey:   "ACME",
		SupplierName:  "Acme Ltd",
		Country:       "UK",
		FreightMode:   domain.ModeRoad,
		PackagingType: domain.PackagingBox,
	}
}

func TestPriceDomesticUKOverride(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{DomesticUKRatePerBox: 4}, nil)

	pricing := p.Price(ukTerms(), []ShipmentLine{{Product: testProduct(), Units: 20}})

	assert.Equal(t, domain.FreightMethodDomestic, pricing.Freight.Method)
	assert.Equal(t, 8.0, pricing.Freight.FreightCost, "2 cases x 4/box")
	assert.Equal(t, 0.0, pricing.Freight.CurrencyFee, "UK suppliers pay no FX fee")
	assert.Equal(t, 200.0, pricing.CostBSF)
	assert.Equal(t, 208.0, pricing.CostASF)
}

func TestPriceCurveExactWithFXFee(t *testing.T) {
	curves := []domain.FreightCurve{{
		Region: "Germany", Mode: domain.ModeRoad, Packaging: domain.PackagingBox,
		Bands: []domain.RateBand{{MinKg: 0, MaxKg: 1000, Intercept: 30, Slope: 1}},
	}}
	terms := ukTerms()
	terms.Country = "Germany"

	p := NewPricer(DefaultConfig(), curves, domain.FreightConfig{}, nil)
	pricing := p.Price(terms, []ShipmentLine{{Product: testProduct(), Units: 10}})

	require.Len(t, pricing.Lines, 1)
	assert.Equal(t, domain.FreightMethodCurve, pricing.Freight.Method)
	assert.True(t, pricing.Freight.Regression.Found)
	assert.Equal(t, 5.0, pricing.Freight.WeightKg, "one 5kg case, no packaging allowance")
	assert.Equal(t, 35.0, pricing.Freight.FreightCost) // 30 + 1*5
	assert.Equal(t, 0.67, pricing.Freight.CurrencyFee) // 100 * 0.0067
	assert.Equal(t, 1.3567, pricing.Freight.Multiplier)
	assert.Equal(t, 135.67, pricing.CostASF)

	line := pricing.Lines[0]
	assert.Equal(t, 13.57, line.LandedCostPerUnit) // 10 * 1.3567
	assert.Equal(t, 6.43, line.ProfitPerUnit)      // 25 - 3 - 2 - 13.57
	assert.Equal(t, Round4(6.43/13.57), line.ROI)
	assert.Equal(t, 135.7, line.CostASF)
}

func TestPriceFallsBackToGenericWhenNoCurveMatches(t *testing.T) {
	terms := ukTerms()
	terms.Country = "France"

	rates := domain.FreightConfig{RatePerKG: 2, MinCharge: 5, BoxSurcharge: 1, HandlingFee: 3}
	p := NewPricer(DefaultConfig(), nil, rates, nil)
	pricing := p.Price(terms, []ShipmentLine{{Product: testProduct(), Units: 10}})

	assert.Equal(t, domain.FreightMethodGeneric, pricing.Freight.Method)
	assert.False(t, pricing.Freight.Regression.Found)
	assert.NotEmpty(t, pricing.Freight.Regression.Message)
	assert.Equal(t, 14.0, pricing.Freight.FreightCost) // 5kg*2 + 1 box + 3 handling
}

func TestPriceEstimatedIgnoresCurves(t *testing.T) {
	curves := []domain.FreightCurve{{
		Region: "Germany", Mode: domain.ModeRoad, Packaging: domain.PackagingBox,
		Bands: []domain.RateBand{{MinKg: 0, MaxKg: 1000, Intercept: 999, Slope: 0}},
	}}
	terms := ukTerms()
	terms.Country = "Germany"

	rates := domain.FreightConfig{RatePerKG: 2, HandlingFee: 3}
	p := NewPricer(DefaultConfig(), curves, rates, nil)
	pricing := p.PriceEstimated(terms, []ShipmentLine{{Product: testProduct(), Units: 10}})

	assert.Equal(t, domain.FreightMethodGeneric, pricing.Freight.Method)
	assert.Equal(t, 13.0, pricing.Freight.FreightCost, "estimates never pay curve prices")
}

func TestPriceChurnOverrides(t *testing.T) {
	churn := map[string]domain.ChurnOverride{
		"acme": {LeadDays: 21, PayoutDays: 7},
	}
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, churn)

	pricing := p.Price(ukTerms(), []ShipmentLine{{Product: testProduct(), Units: 10}})
	require.Len(t, pricing.Lines, 1)

	// daily = 300/1/30 = 10 so 10 units last 1 day; (21+1+7)/7 weeks.
	assert.Equal(t, Round4(29.0/7), pricing.Lines[0].ChurnWeeks)
}

func TestPricePayoutDelayFromTitle(t *testing.T) {
	prod := testProduct()
	prod.Title = "Dell 24 Monitor"

	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)
	pricing := p.Price(ukTerms(), []ShipmentLine{{Product: prod, Units: 10}})
	require.Len(t, pricing.Lines, 1)

	// (0 + 1 + 42) / 7
	assert.Equal(t, Round4(43.0/7), pricing.Lines[0].ChurnWeeks)
}

func TestPriceZeroSpendShipment(t *testing.T) {
	p := NewPricer(DefaultConfig(), nil, domain.FreightConfig{}, nil)
	pricing := p.Price(ukTerms(), nil)

	assert.Equal(t, 0.0, pricing.CostBSF)
	assert.Equal(t, 1.0, pricing.Freight.Multiplier)
	assert.Empty(t, pricing.Lines)
}
