package engine

import (
	"github.com/oplift/buyplan/internal/domain"
)

// ShipmentPricing is a shipment priced end to end: the freight quote plus
// per-line economics and cost-weighted totals.
type ShipmentPricing struct {
	Freight    domain.ShipmentQuote
	Lines      []domain.PurchaseOption
	CostBSF    float64
	CostASF    float64
	Profit     float64
	ChurnWeeks float64
	MonthlyROI float64
}

// Pricer prices shipments against a fixed freight and churn context. It is
// immutable after construction and safe for concurrent use.
type Pricer struct {
	cfg    Config
	curves []domain.FreightCurve
	rates  domain.FreightConfig
	churn  map[string]domain.ChurnOverride
}

// NewPricer builds a pricer for one allocation request.
func NewPricer(cfg Config, curves []domain.FreightCurve, rates domain.FreightConfig, churn map[string]domain.ChurnOverride) *Pricer {
	normalized := make(map[string]domain.ChurnOverride, len(churn))
	for key, ov := range churn {
		normalized[domain.NormalizeSupplierKey(key)] = ov
	}
	return &Pricer{
		cfg:    cfg.normalized(),
		curves: curves,
		rates:  rates,
		churn:  normalized,
	}
}

// Config exposes the policy the pricer was built with.
func (p *Pricer) Config() Config {
	return p.cfg
}

// Price prices a shipment exactly: curve lookup first, generic fallback,
// UK domestic override when configured.
func (p *Pricer) Price(terms domain.SupplierTerms, lines []ShipmentLine) ShipmentPricing {
	return p.price(terms, lines, true)
}

// PriceEstimated prices a shipment with the generic rate model only. The
// staged pipeline uses it for cheap pre-selection estimates; curve-exact
// pricing runs once the selection is known.
func (p *Pricer) PriceEstimated(terms domain.SupplierTerms, lines []ShipmentLine) ShipmentPricing {
	return p.price(terms, lines, false)
}

func (p *Pricer) price(terms domain.SupplierTerms, lines []ShipmentLine, exact bool) ShipmentPricing {
	var costBSF float64
	for _, l := range lines {
		if l.Units <= 0 {
			continue
		}
		costBSF += float64(l.Units) * l.Product.SupplierPrice
	}
	costBSF = Round2(costBSF)

	weight := TotalWeight(lines, terms.PackagingWeightPercent)
	cbm := TotalCBM(lines)
	boxes := TotalCases(lines)
	pallets := 0
	if terms.PackagingType == domain.PackagingPallet {
		pallets = PalletCount(cbm)
	}

	quote := domain.ShipmentQuote{
		WeightKg: weight,
		CBM:      cbm,
		Boxes:    boxes,
		Pallets:  pallets,
	}

	switch {
	case terms.IsUK() && p.rates.DomesticUKRatePerBox > 0:
		quote.FreightCost = Round2(float64(boxes) * p.rates.DomesticUKRatePerBox)
		quote.Method = domain.FreightMethodDomestic
		quote.Regression = domain.RegressionInfo{Found: false, Message: "domestic UK per-box rate applied"}
	case exact:
		if cost, ok := FreightFromCurve(p.curves, terms.Country, terms.FreightMode, terms.PackagingType, weight, cbm); ok {
			quote.FreightCost = cost
			quote.Method = domain.FreightMethodCurve
			quote.Regression = domain.RegressionInfo{Found: true}
		} else {
			quote.FreightCost = FreightGeneric(p.rates, weight, cbm, terms.PackagingType, boxes, pallets)
			quote.Method = domain.FreightMethodGeneric
			quote.Regression = domain.RegressionInfo{Found: false, Message: "no freight curve for region/mode/packaging; generic rate applied"}
		}
	default:
		quote.FreightCost = FreightGeneric(p.rates, weight, cbm, terms.PackagingType, boxes, pallets)
		quote.Method = domain.FreightMethodGeneric
		quote.Regression = domain.RegressionInfo{Found: false, Message: "pre-selection estimate; generic rate applied"}
	}

	quote.CurrencyFee = CurrencyFee(costBSF, terms.IsUK())
	quote.Multiplier = FreightMultiplier(costBSF, quote.FreightCost, quote.CurrencyFee)

	pricing := ShipmentPricing{
		Freight: quote,
		CostBSF: costBSF,
		CostASF: Round2(costBSF + quote.FreightCost + quote.CurrencyFee),
	}

	override := p.churn[domain.NormalizeSupplierKey(terms.SupplierKey)]

	var weightedROI, weightedChurn, weightSum float64
	for _, l := range lines {
		if l.Units <= 0 {
			continue
		}
		opt := p.priceLine(l, quote.Multiplier, override)
		pricing.Lines = append(pricing.Lines, opt)
		pricing.Profit += float64(opt.Units) * opt.ProfitPerUnit

		weightedROI += opt.MonthlyROI * opt.CostASF
		weightedChurn += opt.ChurnWeeks * opt.CostASF
		weightSum += opt.CostASF
	}
	pricing.Profit = Round2(pricing.Profit)

	if weightSum > 0 {
		pricing.MonthlyROI = Round4(weightedROI / weightSum)
		pricing.ChurnWeeks = Round4(weightedChurn / weightSum)
	}

	return pricing
}

// priceLine derives one line's economics from the shipment multiplier.
func (p *Pricer) priceLine(l ShipmentLine, multiplier float64, override domain.ChurnOverride) domain.PurchaseOption {
	prod := l.Product

	landed := Round2(prod.SupplierPrice * multiplier)
	profit := Round2(prod.AmazonPrice - prod.AmazonFees - prod.VATPerUnit - landed)
	roi := ROI(profit, landed)

	daily := DailySales(prod.MonthlySales, prod.SellerCount)
	dos := DaysOfStock(l.Units, daily)

	leadDays := p.cfg.DefaultLeadDays
	if override.LeadDays > 0 {
		leadDays = override.LeadDays
	}
	payout := PayoutDays(prod.Title)
	if override.PayoutDays > 0 {
		payout = override.PayoutDays
	}

	churnWeeks := ChurnWeeks(leadDays, dos, payout, 0, p.cfg.ChurnCapWeeks)

	return domain.PurchaseOption{
		SKU:               prod.SKU,
		Title:             prod.Title,
		Units:             l.Units,
		Cases:             l.Cases(),
		CaseSize:          prod.NormalizedCaseSize(),
		CostBSF:           Round2(float64(l.Units) * prod.SupplierPrice),
		CostASF:           Round2(float64(l.Units) * landed),
		LandedCostPerUnit: landed,
		ProfitPerUnit:     profit,
		ROI:               roi,
		ChurnWeeks:        churnWeeks,
		MonthlyROI:        MonthlyROI(roi, churnWeeks),
	}
}
