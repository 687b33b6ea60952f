package engine

import (
	"sort"

	"github.com/oplift/buyplan/internal/domain"
)

// Optimizer scoring weights: monthly ROI dominates, spend fraction breaks
// ties in favor of fuller budget use.
const (
	scoreROIWeight   = 1000
	scoreSpendWeight = 100
)

// Selection is the optimizer output: the chosen bundles and their totals.
type Selection struct {
	Bundles         []domain.Bundle
	TotalCostASF    float64
	TotalProfit     float64
	MonthlyROI      float64
	RemainingBudget float64
	Exhaustive      bool
}

// OptimizeBudget selects bundles maximizing budget-weighted monthly ROI
// without exceeding the budget. At most one bundle per supplier is chosen
// since a supplier's bundles are alternative plans for the same SKUs.
//
// Up to exhaustiveLimit candidates every subset is enumerated; beyond it a
// greedy pass with a single backward swap-improvement sweep runs. The sweep
// is a documented heuristic, not an exact knapsack.
func OptimizeBudget(bundles []domain.Bundle, budget float64, exhaustiveLimit int) Selection {
	if len(bundles) == 0 || budget <= 0 {
		return Selection{RemainingBudget: Round2(budget)}
	}

	var chosen []domain.Bundle
	exhaustive := len(bundles) <= exhaustiveLimit
	if exhaustive {
		chosen = optimizeExhaustive(bundles, budget)
	} else {
		chosen = optimizeGreedy(bundles, budget)
	}
	return summarize(chosen, budget, exhaustive)
}

// optimizeExhaustive scores every feasible non-empty subset.
func optimizeExhaustive(bundles []domain.Bundle, budget float64) []domain.Bundle {
	n := len(bundles)
	bestScore := -1.0
	bestMask := 0

	// Supplier ids let the subset loop check the one-bundle-per-supplier
	// constraint with a bitmask instead of a map.
	supplierIDs := make([]uint, n)
	ids := make(map[string]uint, n)
	for i, b := range bundles {
		id, ok := ids[b.SupplierKey]
		if !ok {
			id = uint(len(ids))
			ids[b.SupplierKey] = id
		}
		supplierIDs[i] = id
	}

	for mask := 1; mask < (1 << n); mask++ {
		var cost, weighted float64
		var supMask uint64
		feasible := true

		for i := 0; i < n; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			bit := uint64(1) << supplierIDs[i]
			if supMask&bit != 0 {
				feasible = false
				break
			}
			supMask |= bit
			b := bundles[i]
			cost += b.CostASF
			weighted += b.MonthlyROI * b.CostASF
		}
		if !feasible || cost > budget || cost <= 0 {
			continue
		}

		roi := weighted / cost
		score := roi*scoreROIWeight + (cost/budget)*scoreSpendWeight
		if score > bestScore {
			bestScore = score
			bestMask = mask
		}
	}

	if bestMask == 0 {
		return nil
	}
	var chosen []domain.Bundle
	for i := 0; i < n; i++ {
		if bestMask&(1<<i) != 0 {
			chosen = append(chosen, bundles[i])
		}
	}
	return chosen
}

// optimizeGreedy takes bundles by monthly ROI while affordable, then walks
// the selection backward once looking for a strictly more expensive,
// equal-or-better-ROI replacement that still fits.
func optimizeGreedy(bundles []domain.Bundle, budget float64) []domain.Bundle {
	// ROI ties rank by key only. Ranking ties by cost descending would make
	// the swap sweep below unreachable: every pricier equal-ROI candidate
	// would already have been rejected with more budget remaining.
	ranked := append([]domain.Bundle(nil), bundles...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MonthlyROI != ranked[j].MonthlyROI {
			return ranked[i].MonthlyROI > ranked[j].MonthlyROI
		}
		return bundleKey(ranked[i]) < bundleKey(ranked[j])
	})

	var selected []domain.Bundle
	selectedIdx := make(map[int]bool, len(ranked))
	suppliers := make(map[string]bool, len(ranked))
	remaining := budget

	for i, b := range ranked {
		if b.CostASF <= 0 || b.CostASF > remaining || suppliers[b.SupplierKey] {
			continue
		}
		selected = append(selected, b)
		selectedIdx[i] = true
		suppliers[b.SupplierKey] = true
		remaining -= b.CostASF
	}

	// Single backward improvement sweep: replace an item with an unselected
	// candidate that spends more of the budget at no ROI loss.
	for i := len(selected) - 1; i >= 0; i-- {
		cur := selected[i]
		for j, cand := range ranked {
			if selectedIdx[j] {
				continue
			}
			if cand.SupplierKey != cur.SupplierKey && suppliers[cand.SupplierKey] {
				continue
			}
			if cand.CostASF <= cur.CostASF || cand.MonthlyROI < cur.MonthlyROI {
				continue
			}
			if cand.CostASF > remaining+cur.CostASF {
				continue
			}

			remaining = remaining + cur.CostASF - cand.CostASF
			delete(suppliers, cur.SupplierKey)
			suppliers[cand.SupplierKey] = true
			for k, b := range ranked {
				if selectedIdx[k] && bundleKey(b) == bundleKey(cur) {
					delete(selectedIdx, k)
					break
				}
			}
			selectedIdx[j] = true
			selected[i] = cand
			break
		}
	}

	return selected
}

// summarize computes selection totals. Monthly ROI is budget-weighted:
// sum(roi*cost)/sum(cost).
func summarize(chosen []domain.Bundle, budget float64, exhaustive bool) Selection {
	sel := Selection{Bundles: chosen, Exhaustive: exhaustive}
	var weighted float64
	for _, b := range chosen {
		sel.TotalCostASF += b.CostASF
		sel.TotalProfit += b.Profit
		weighted += b.MonthlyROI * b.CostASF
	}
	if sel.TotalCostASF > 0 {
		sel.MonthlyROI = Round4(weighted / sel.TotalCostASF)
	}
	sel.TotalCostASF = Round2(sel.TotalCostASF)
	sel.TotalProfit = Round2(sel.TotalProfit)
	sel.RemainingBudget = Round2(budget - sel.TotalCostASF)
	return sel
}
