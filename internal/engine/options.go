package engine

import (
	"math"

	"github.com/oplift/buyplan/internal/domain"
)

// BuildOptions enumerates the discrete purchasable quantities for one SKU,
// in whole cases, each priced as a standalone single-SKU shipment. That is
// an approximation: true freight depends on the combined shipment and is
// re-priced by the bundle builder. Ineligible products return nil; an
// eligible product whose single case already exceeds the budget returns an
// empty (never nil) list so callers can tell "excluded" from "unaffordable".
func (p *Pricer) BuildOptions(product domain.Product, terms domain.SupplierTerms, budget float64) []domain.PurchaseOption {
	if !product.Eligible() {
		return nil
	}

	caseSize := product.NormalizedCaseSize()
	casePrice := float64(caseSize) * product.SupplierPrice

	maxByBudget := int(math.Floor(budget / casePrice))
	if maxByBudget < 1 {
		return []domain.PurchaseOption{}
	}

	// Stock ceiling: a fixed horizon of velocity-adjusted sales, expressed
	// in whole cases, never below one case.
	velocityUnits := product.MonthlySales / float64(maxInt(product.SellerCount, 1)) * p.cfg.VelocityHorizonMonths
	maxByVelocity := int(math.Floor(velocityUnits / float64(caseSize)))
	if maxByVelocity < 1 {
		maxByVelocity = 1
	}

	maxCases := minInt(maxByBudget, minInt(maxByVelocity, p.cfg.MaxCasesPerOption))

	options := make([]domain.PurchaseOption, 0, maxCases)
	for cases := 1; cases <= maxCases; cases++ {
		line := ShipmentLine{Product: product, Units: cases * caseSize}
		priced := p.Price(terms, []ShipmentLine{line})
		if len(priced.Lines) != 1 {
			continue
		}
		options = append(options, priced.Lines[0])
	}
	return options
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
