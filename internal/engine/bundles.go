package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/oplift/buyplan/internal/domain"
)

// greedyROITolerance is how much combined monthly ROI may dip below the
// current bundle's when adding a SKU. It stops strictly-greedy combination
// from collapsing ROI while still letting bundles grow toward MOQ and
// fuller budget use.
const greedyROITolerance = 0.95

// BuildBundles combines one supplier's SKU options into purchase bundles.
// Each SKU's best option (by monthly ROI) seeds a single-SKU bundle; the top
// seeds then greedily absorb other SKUs' best options, re-pricing freight
// for the combined shipment at every step. Only bundles whose ASF spend
// clears the supplier MOQ are returned, best monthly ROI first, at most
// MaxBundlesPerSupplier.
func (p *Pricer) BuildBundles(terms domain.SupplierTerms, products []domain.Product, budget float64) []domain.Bundle {
	type skuBest struct {
		product domain.Product
		option  domain.PurchaseOption
	}

	var bests []skuBest
	for _, prod := range products {
		options := p.BuildOptions(prod, terms, budget)
		if len(options) == 0 {
			continue
		}
		// Ties on monthly ROI go to the larger quantity; spending more of
		// the budget at the same ROI is strictly better.
		best := options[0]
		for _, opt := range options[1:] {
			if opt.MonthlyROI >= best.MonthlyROI {
				best = opt
			}
		}
		bests = append(bests, skuBest{product: prod, option: best})
	}
	if len(bests) == 0 {
		return nil
	}

	// Deterministic ordering: monthly ROI desc, SKU as tie-break.
	sort.Slice(bests, func(i, j int) bool {
		if bests[i].option.MonthlyROI != bests[j].option.MonthlyROI {
			return bests[i].option.MonthlyROI > bests[j].option.MonthlyROI
		}
		return bests[i].option.SKU < bests[j].option.SKU
	})

	lineFor := func(b skuBest) ShipmentLine {
		return ShipmentLine{Product: b.product, Units: b.option.Units}
	}

	var candidates []domain.Bundle
	seen := make(map[string]bool)

	record := func(lines []ShipmentLine) domain.Bundle {
		bundle := p.bundleFromLines(terms, lines)
		key := bundleKey(bundle)
		if !seen[key] {
			seen[key] = true
			candidates = append(candidates, bundle)
		}
		return bundle
	}

	// Single-SKU bundles. Below-MOQ ones are not viable alone but still
	// seed multi-SKU combination.
	for _, b := range bests {
		record([]ShipmentLine{lineFor(b)})
	}

	seedCount := minInt(p.cfg.SeedBundles, len(bests))
	for s := 0; s < seedCount; s++ {
		lines := []ShipmentLine{lineFor(bests[s])}
		current := p.bundleFromLines(terms, lines)

		for i, b := range bests {
			if i == s {
				continue
			}
			combinedLines := append(append([]ShipmentLine(nil), lines...), lineFor(b))
			combined := p.bundleFromLines(terms, combinedLines)

			if combined.CostASF > budget {
				continue
			}
			if combined.MonthlyROI < greedyROITolerance*current.MonthlyROI {
				continue
			}

			lines = combinedLines
			current = combined
		}

		record(lines)
	}

	eligible := candidates[:0]
	for _, b := range candidates {
		if terms.MOQGBP > 0 && b.CostASF < terms.MOQGBP {
			continue
		}
		eligible = append(eligible, b)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].MonthlyROI != eligible[j].MonthlyROI {
			return eligible[i].MonthlyROI > eligible[j].MonthlyROI
		}
		return bundleKey(eligible[i]) < bundleKey(eligible[j])
	})

	if len(eligible) > p.cfg.MaxBundlesPerSupplier {
		eligible = eligible[:p.cfg.MaxBundlesPerSupplier]
	}
	return eligible
}

// bundleFromLines prices the combined shipment and wraps it as a bundle.
func (p *Pricer) bundleFromLines(terms domain.SupplierTerms, lines []ShipmentLine) domain.Bundle {
	priced := p.Price(terms, lines)
	return domain.Bundle{
		SupplierKey: domain.NormalizeSupplierKey(terms.SupplierKey),
		Options:     priced.Lines,
		Freight:     priced.Freight,
		CostBSF:     priced.CostBSF,
		CostASF:     priced.CostASF,
		Profit:      priced.Profit,
		ChurnWeeks:  priced.ChurnWeeks,
		MonthlyROI:  priced.MonthlyROI,
	}
}

// bundleKey identifies a bundle by its SKU/unit composition.
func bundleKey(b domain.Bundle) string {
	parts := make([]string, 0, len(b.Options)+1)
	parts = append(parts, b.SupplierKey)
	for _, opt := range b.Options {
		parts = append(parts, opt.SKU+"x"+strconv.Itoa(opt.Units))
	}
	sort.Strings(parts[1:])
	return strings.Join(parts, "|")
}
