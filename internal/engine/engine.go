// Package engine implements the allocation and cost-modeling core: the
// layered landed-cost model, the churn-normalized monthly-ROI model and the
// combinatorial budget optimizer. Everything here is pure and deterministic;
// callers resolve freight curves and supplier master data up front and pass
// them in as plain values.
package engine

import (
	"sort"

	"github.com/oplift/buyplan/internal/domain"
	"github.com/oplift/buyplan/pkg/logger"
)

// Engine runs the monolithic allocation path: per-SKU options, per-supplier
// bundles, then budget optimization across suppliers.
type Engine struct {
	cfg Config
}

// New builds an engine with the given policy.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.normalized()}
}

// Allocate runs options -> bundles -> optimizer and shapes the result.
// It returns an InputError for invalid input and never returns a partially
// valid result.
func (e *Engine) Allocate(req domain.AllocationRequest) (*domain.AllocationResult, error) {
	if req.Budget <= 0 {
		return nil, NewInputError("budget must be positive")
	}
	if len(req.Products) == 0 {
		return nil, NewInputError("no products supplied")
	}

	terms := IndexSupplierTerms(req.Suppliers)
	grouped := GroupEligibleProducts(req.Products)
	if len(grouped) == 0 {
		return nil, NewInputError("no eligible products (positive supplier price and monthly sales required)")
	}

	pricer := NewPricer(e.cfg, req.FreightCurves, req.FreightConfig, req.ChurnSettings)

	supplierKeys := make([]string, 0, len(grouped))
	for key := range grouped {
		supplierKeys = append(supplierKeys, key)
	}
	sort.Strings(supplierKeys)

	var bundles []domain.Bundle
	for _, key := range supplierKeys {
		t, ok := terms[key]
		if !ok {
			// No terms on file: price as a generic overseas box shipment so
			// the products stay in play rather than vanishing silently.
			t = DefaultTerms(key)
		}
		supplierBundles := pricer.BuildBundles(t, grouped[key], req.Budget)
		logger.Log.Debug().
			Str("supplier", key).
			Int("bundles", len(supplierBundles)).
			Msg("built supplier bundles")
		bundles = append(bundles, supplierBundles...)
	}
	if len(bundles) == 0 {
		return nil, NewInputError("no eligible purchase bundles within budget and MOQ constraints")
	}

	sel := OptimizeBudget(bundles, req.Budget, e.cfg.ExhaustiveLimit)
	logger.Log.Debug().
		Int("candidates", len(bundles)).
		Int("selected", len(sel.Bundles)).
		Bool("exhaustive", sel.Exhaustive).
		Float64("monthly_roi", sel.MonthlyROI).
		Msg("budget optimization complete")

	return e.buildResult(req, terms, sel), nil
}

// buildResult shapes the optimizer selection into the caller-facing result.
func (e *Engine) buildResult(req domain.AllocationRequest, terms map[string]domain.SupplierTerms, sel Selection) *domain.AllocationResult {
	result := &domain.AllocationResult{
		Suppliers: make([]domain.SupplierAllocation, 0, len(sel.Bundles)),
	}

	var totalUnits int
	var weightedChurn float64
	for _, b := range sel.Bundles {
		var units int
		var churnWeight float64
		for _, opt := range b.Options {
			units += opt.Units
			churnWeight += opt.ChurnWeeks * opt.CostASF
		}
		totalUnits += units
		weightedChurn += churnWeight

		name := b.SupplierKey
		if t, ok := terms[b.SupplierKey]; ok && t.SupplierName != "" {
			name = t.SupplierName
		}

		var roi float64
		if b.CostASF > 0 {
			roi = Round4(b.Profit / b.CostASF)
		}
		result.Suppliers = append(result.Suppliers, domain.SupplierAllocation{
			SupplierKey:  b.SupplierKey,
			SupplierName: name,
			Freight:      b.Freight,
			Summary: domain.AllocationSummary{
				TotalUnits:         units,
				TotalCostASF:       b.CostASF,
				ExpectedProfit:     b.Profit,
				ROI:                roi,
				WeightedChurnWeeks: b.ChurnWeeks,
				MonthlyROI:         b.MonthlyROI,
			},
			Products: b.Options,
		})
	}

	sort.Slice(result.Suppliers, func(i, j int) bool {
		return result.Suppliers[i].SupplierKey < result.Suppliers[j].SupplierKey
	})

	summary := domain.AllocationSummary{
		TotalUnits:      totalUnits,
		TotalCostASF:    sel.TotalCostASF,
		ExpectedProfit:  sel.TotalProfit,
		RemainingBudget: sel.RemainingBudget,
		MonthlyROI:      sel.MonthlyROI,
	}
	if sel.TotalCostASF > 0 {
		summary.ROI = Round4(sel.TotalProfit / sel.TotalCostASF)
		summary.WeightedChurnWeeks = Round4(weightedChurn / sel.TotalCostASF)
	}
	result.Summary = summary
	return result
}

// IndexSupplierTerms keys terms by normalized supplier key.
func IndexSupplierTerms(suppliers []domain.SupplierTerms) map[string]domain.SupplierTerms {
	index := make(map[string]domain.SupplierTerms, len(suppliers))
	for _, s := range suppliers {
		key := domain.NormalizeSupplierKey(s.SupplierKey)
		if key == "" {
			continue
		}
		s.SupplierKey = key
		index[key] = s
	}
	return index
}

// GroupEligibleProducts groups purchasable products by normalized supplier
// key. Ineligible products are excluded from every output.
func GroupEligibleProducts(products []domain.Product) map[string][]domain.Product {
	grouped := make(map[string][]domain.Product)
	for _, p := range products {
		if !p.Eligible() {
			continue
		}
		key := domain.NormalizeSupplierKey(p.SupplierKey)
		if key == "" {
			continue
		}
		p.SupplierKey = key
		grouped[key] = append(grouped[key], p)
	}
	return grouped
}

// DefaultTerms is the conservative fallback for suppliers with no terms on
// file: overseas boxed road freight, no MOQ.
func DefaultTerms(key string) domain.SupplierTerms {
	return domain.SupplierTerms{
		SupplierKey:   key,
		SupplierName:  key,
		FreightMode:   domain.ModeRoad,
		PackagingType: domain.PackagingBox,
	}
}
