package pipeline

import (
	"sort"
	"time"

	"github.com/oplift/buyplan/internal/domain"
	"github.com/oplift/buyplan/internal/engine"
)

// load (stage 1) normalizes supplier keys and copies the inputs into the
// state. Ineligible products stay in Data verbatim but are listed so audits
// can see what later stages will skip.
func (p *Pipeline) load(inputs Inputs, data Data, createdAt time.Time) *State {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	suppliers := make([]domain.SupplierTerms, len(data.Suppliers))
	for i, s := range data.Suppliers {
		s.SupplierKey = domain.NormalizeSupplierKey(s.SupplierKey)
		suppliers[i] = s
	}

	var excluded []string
	products := make([]domain.Product, len(data.Products))
	for i, prod := range data.Products {
		prod.SupplierKey = domain.NormalizeSupplierKey(prod.SupplierKey)
		products[i] = prod
		if !prod.Eligible() {
			excluded = append(excluded, prod.SKU)
		}
	}

	churn := make(map[string]domain.ChurnOverride, len(data.ChurnSettings))
	for key, ov := range data.ChurnSettings {
		churn[domain.NormalizeSupplierKey(key)] = ov
	}

	return &State{
		Meta: Meta{
			Stage:     StageLoad,
			StageName: StageName(StageLoad),
			CreatedAt: createdAt,
			UpdatedAt: now,
		},
		Inputs: inputs,
		Data: Data{
			Suppliers:     suppliers,
			Products:      products,
			FreightCurves: data.FreightCurves,
			FreightConfig: data.FreightConfig,
			ChurnSettings: churn,
		},
		Stage1: &LoadSummary{
			SupplierCount:    len(suppliers),
			ProductCount:     len(products),
			ExcludedProducts: excluded,
		},
	}
}

// pricer builds the shared pricing context from the loaded data.
func (p *Pipeline) pricer(state *State) *engine.Pricer {
	return engine.NewPricer(p.cfg, state.Data.FreightCurves, state.Data.FreightConfig, state.Data.ChurnSettings)
}

// termsFor resolves supplier terms, falling back to the conservative
// defaults for suppliers with no terms on file.
func termsFor(state *State, key string) domain.SupplierTerms {
	for _, s := range state.Data.Suppliers {
		if s.SupplierKey == key {
			return s
		}
	}
	return engine.DefaultTerms(key)
}

// runMOQBlocks (stage 2) builds, per supplier, the minimum viable purchase:
// products ranked by a raw pre-freight monthly-ROI proxy, whole cases added
// greedily until the cumulative spend clears the supplier MOQ.
func (p *Pipeline) runMOQBlocks(state *State) error {
	if err := requireStage(StageMOQBlocks, StageLoad, state.Stage1 != nil && state.Stage1.ProductCount > 0); err != nil {
		return err
	}

	cfg := p.pricer(state).Config()
	grouped := engine.GroupEligibleProducts(state.Data.Products)

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := &MOQBlocks{}
	for _, key := range keys {
		terms := termsFor(state, key)
		override := state.Data.ChurnSettings[key]

		type ranked struct {
			product  domain.Product
			proxy    float64
			maxCases int
		}
		var candidates []ranked
		for _, prod := range grouped[key] {
			proxy := preFreightMonthlyROI(prod, override, cfg)
			if proxy <= 0 {
				continue
			}
			velocityUnits := prod.MonthlySales / float64(maxInt(prod.SellerCount, 1)) * cfg.VelocityHorizonMonths
			maxCases := int(velocityUnits) / prod.NormalizedCaseSize()
			if maxCases < 1 {
				maxCases = 1
			}
			candidates = append(candidates, ranked{product: prod, proxy: proxy, maxCases: maxCases})
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].proxy != candidates[j].proxy {
				return candidates[i].proxy > candidates[j].proxy
			}
			return candidates[i].product.SKU < candidates[j].product.SKU
		})

		block := MOQBlock{SupplierKey: key, MOQGBP: terms.MOQGBP}
		var spend float64
		for i, c := range candidates {
			caseSize := c.product.NormalizedCaseSize()
			casePrice := float64(caseSize) * c.product.SupplierPrice

			cases := 0
			for cases < c.maxCases {
				// The top product always contributes at least one case when
				// an MOQ exists; beyond that, stop once the MOQ is met.
				mustSeed := i == 0 && cases == 0
				if !mustSeed && (terms.MOQGBP <= 0 || spend >= terms.MOQGBP) {
					break
				}
				cases++
				spend += casePrice
			}
			if cases == 0 {
				continue
			}
			block.Lines = append(block.Lines, BlockLine{
				SKU:             c.product.SKU,
				Cases:           cases,
				Units:           cases * caseSize,
				UnitPrice:       c.product.SupplierPrice,
				SpendBSF:        engine.Round2(float64(cases) * casePrice),
				ProxyMonthlyROI: c.proxy,
			})
		}
		if len(block.Lines) == 0 {
			continue
		}
		block.SpendBSF = engine.Round2(spend)
		block.MOQMet = terms.MOQGBP <= 0 || block.SpendBSF >= terms.MOQGBP
		out.Blocks = append(out.Blocks, block)
	}

	state.Stage2 = out
	return nil
}

// preFreightMonthlyROI is the stage-2 ranking proxy: unit economics with a
// landed cost of exactly the supplier price (multiplier 1), churn measured
// on a single case.
func preFreightMonthlyROI(prod domain.Product, override domain.ChurnOverride, cfg engine.Config) float64 {
	profit := engine.Round2(prod.AmazonPrice - prod.AmazonFees - prod.VATPerUnit - prod.SupplierPrice)
	roi := engine.ROI(profit, prod.SupplierPrice)

	daily := engine.DailySales(prod.MonthlySales, prod.SellerCount)
	dos := engine.DaysOfStock(prod.NormalizedCaseSize(), daily)

	lead := cfg.DefaultLeadDays
	if override.LeadDays > 0 {
		lead = override.LeadDays
	}
	payout := engine.PayoutDays(prod.Title)
	if override.PayoutDays > 0 {
		payout = override.PayoutDays
	}

	weeks := engine.ChurnWeeks(lead, dos, payout, 0, cfg.ChurnCapWeeks)
	return engine.MonthlyROI(roi, weeks)
}

// runEstimatedASF (stage 3) prices each MOQ block's shipment with the
// generic (pre-selection) freight estimate.
func (p *Pipeline) runEstimatedASF(state *State) error {
	if err := requireStage(StageEstimatedASF, StageMOQBlocks, state.Stage2 != nil && len(state.Stage2.Blocks) > 0); err != nil {
		return err
	}

	pricer := p.pricer(state)
	products := productIndex(state)

	out := &EstimatedASF{Blocks: make([]BlockPricing, 0, len(state.Stage2.Blocks))}
	for _, block := range state.Stage2.Blocks {
		terms := termsFor(state, block.SupplierKey)
		lines := blockShipment(block, products)
		priced := pricer.PriceEstimated(terms, lines)

		out.Blocks = append(out.Blocks, BlockPricing{
			SupplierKey:         block.SupplierKey,
			Freight:             priced.Freight,
			Lines:               priced.Lines,
			CostBSF:             priced.CostBSF,
			CostASF:             priced.CostASF,
			Profit:              priced.Profit,
			ChurnWeeks:          priced.ChurnWeeks,
			EstimatedMonthlyROI: priced.MonthlyROI,
		})
	}

	state.Stage3 = out
	return nil
}

// runRankCut (stage 4) is the pure greedy budget cut line: blocks ranked by
// estimated monthly ROI, taken while they fit, rejected with a reason
// otherwise. Intentionally cheap; later stages refine it.
func (p *Pipeline) runRankCut(state *State) error {
	if err := requireStage(StageRankCut, StageEstimatedASF, state.Stage3 != nil && len(state.Stage3.Blocks) > 0); err != nil {
		return err
	}

	blocks := append([]BlockPricing(nil), state.Stage3.Blocks...)
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].EstimatedMonthlyROI != blocks[j].EstimatedMonthlyROI {
			return blocks[i].EstimatedMonthlyROI > blocks[j].EstimatedMonthlyROI
		}
		return blocks[i].SupplierKey < blocks[j].SupplierKey
	})

	out := &RankCut{BudgetRemaining: state.Inputs.Budget}
	for _, b := range blocks {
		out.Ranked = append(out.Ranked, b.SupplierKey)
		switch {
		case b.CostASF <= 0:
			out.Rejected = append(out.Rejected, Rejection{SupplierKey: b.SupplierKey, Reason: ReasonNonPositiveASF, CostASF: b.CostASF})
		case b.CostASF <= out.BudgetRemaining:
			out.Selected = append(out.Selected, b.SupplierKey)
			out.BudgetUsed = engine.Round2(out.BudgetUsed + b.CostASF)
			out.BudgetRemaining = engine.Round2(out.BudgetRemaining - b.CostASF)
		default:
			out.Rejected = append(out.Rejected, Rejection{SupplierKey: b.SupplierKey, Reason: ReasonInsufficientBudget, CostASF: b.CostASF})
		}
	}

	state.Stage4 = out
	return nil
}

// runExactASF (stage 5) re-prices the selected suppliers' shipments with
// exact (curve-backed) freight now that the selection is known.
func (p *Pipeline) runExactASF(state *State) error {
	if err := requireStage(StageExactASF, StageRankCut, state.Stage4 != nil && len(state.Stage4.Selected) > 0); err != nil {
		return err
	}
	if err := requireStage(StageExactASF, StageMOQBlocks, state.Stage2 != nil); err != nil {
		return err
	}

	pricer := p.pricer(state)
	products := productIndex(state)
	blocksByKey := make(map[string]MOQBlock, len(state.Stage2.Blocks))
	for _, b := range state.Stage2.Blocks {
		blocksByKey[b.SupplierKey] = b
	}

	out := &ExactASF{Suppliers: make([]SupplierPricing, 0, len(state.Stage4.Selected))}
	for _, key := range state.Stage4.Selected {
		block, ok := blocksByKey[key]
		if !ok {
			continue
		}
		terms := termsFor(state, key)
		priced := pricer.Price(terms, blockShipment(block, products))

		out.Suppliers = append(out.Suppliers, SupplierPricing{
			SupplierKey: key,
			Freight:     priced.Freight,
			Lines:       priced.Lines,
			CostBSF:     priced.CostBSF,
			CostASF:     priced.CostASF,
			Profit:      priced.Profit,
			ChurnWeeks:  priced.ChurnWeeks,
			MonthlyROI:  priced.MonthlyROI,
		})
	}

	state.Stage5 = out
	return nil
}

// runReallocation (stage 6) flattens the selected purchases into atomic
// cases and locally optimizes at case granularity: over budget drops the
// worst case, under budget re-adds the best affordable dropped case.
func (p *Pipeline) runReallocation(state *State) error {
	if err := requireStage(StageReallocation, StageExactASF, state.Stage5 != nil && len(state.Stage5.Suppliers) > 0); err != nil {
		return err
	}

	var cases []CaseUnit
	for _, sup := range state.Stage5.Suppliers {
		for _, line := range sup.Lines {
			if line.Cases <= 0 {
				continue
			}
			unitsPerCase := line.Units / line.Cases
			for c := 0; c < line.Cases; c++ {
				cases = append(cases, CaseUnit{
					SupplierKey: sup.SupplierKey,
					SKU:         line.SKU,
					Units:       unitsPerCase,
					Cost:        engine.Round2(float64(unitsPerCase) * line.LandedCostPerUnit),
					Profit:      engine.Round2(float64(unitsPerCase) * line.ProfitPerUnit),
					MonthlyROI:  line.MonthlyROI,
				})
			}
		}
	}
	sortCases(cases)

	var total float64
	for _, c := range cases {
		total += c.Cost
	}

	budget := state.Inputs.Budget
	var dropped []CaseUnit
	for total > budget && len(cases) > 0 {
		worst := cases[len(cases)-1]
		cases = cases[:len(cases)-1]
		dropped = append(dropped, worst)
		total -= worst.Cost
	}

	// Re-add the best affordable case from the dropped pool until nothing
	// fits. The pool is best-first because drops happened worst-first.
	for {
		added := false
		for i := len(dropped) - 1; i >= 0; i-- {
			if dropped[i].Cost <= budget-total {
				cases = append(cases, dropped[i])
				total += dropped[i].Cost
				dropped = append(dropped[:i], dropped[i+1:]...)
				added = true
				break
			}
		}
		if !added {
			break
		}
	}
	sortCases(cases)

	state.Stage6 = &CaseReallocation{
		Cases:           cases,
		Dropped:         dropped,
		TotalCost:       engine.Round2(total),
		BudgetRemaining: engine.Round2(budget - total),
	}
	return nil
}

func sortCases(cases []CaseUnit) {
	sort.Slice(cases, func(i, j int) bool {
		if cases[i].MonthlyROI != cases[j].MonthlyROI {
			return cases[i].MonthlyROI > cases[j].MonthlyROI
		}
		if cases[i].SupplierKey != cases[j].SupplierKey {
			return cases[i].SupplierKey < cases[j].SupplierKey
		}
		return cases[i].SKU < cases[j].SKU
	})
}

// runSubstitution (stage 7) compares the worst included case against the
// best excluded MOQ block (modeled as one synthetic case) for up to three
// iterations. Advisory only: it reports before/after metrics and never
// mutates stage 6's output, so stage 6 stays independently debuggable.
func (p *Pipeline) runSubstitution(state *State) error {
	if err := requireStage(StageSubstitution, StageReallocation, state.Stage6 != nil && len(state.Stage6.Cases) > 0); err != nil {
		return err
	}
	if err := requireStage(StageSubstitution, StageRankCut, state.Stage4 != nil); err != nil {
		return err
	}
	if err := requireStage(StageSubstitution, StageEstimatedASF, state.Stage3 != nil); err != nil {
		return err
	}

	working := append([]CaseUnit(nil), state.Stage6.Cases...)
	sortCases(working)

	// Excluded MOQ blocks become synthetic single cases priced at their
	// estimated ASF.
	pricingByKey := make(map[string]BlockPricing, len(state.Stage3.Blocks))
	for _, b := range state.Stage3.Blocks {
		pricingByKey[b.SupplierKey] = b
	}
	var excluded []CaseUnit
	for _, rej := range state.Stage4.Rejected {
		b, ok := pricingByKey[rej.SupplierKey]
		if !ok || b.CostASF <= 0 {
			continue
		}
		excluded = append(excluded, CaseUnit{
			SupplierKey: b.SupplierKey,
			SKU:         "moq_block",
			Cost:        b.CostASF,
			Profit:      b.Profit,
			MonthlyROI:  b.EstimatedMonthlyROI,
		})
	}
	sortCases(excluded)

	out := &Substitution{Before: substitutionMetrics(working, len(excluded))}

	budget := state.Inputs.Budget
	for iter := 0; iter < 3 && len(working) > 0 && len(excluded) > 0; iter++ {
		worst := working[len(working)-1]
		best := excluded[0]

		withoutWorst := workingCost(working) - worst.Cost
		step := SubstitutionStep{
			DroppedSupplier: worst.SupplierKey,
			DroppedSKU:      worst.SKU,
			AddedSupplier:   best.SupplierKey,
			DroppedROI:      worst.MonthlyROI,
			AddedROI:        best.MonthlyROI,
		}

		improves := avgROIAfterSwap(working, worst, best) > averageROI(working)
		fits := withoutWorst+best.Cost <= budget
		if !improves || !fits {
			out.Steps = append(out.Steps, step)
			break
		}

		step.Applied = true
		out.Steps = append(out.Steps, step)
		working[len(working)-1] = best
		excluded = excluded[1:]
		sortCases(working)
	}

	out.After = substitutionMetrics(working, len(excluded))
	state.Stage7 = out
	return nil
}

func workingCost(cases []CaseUnit) float64 {
	var total float64
	for _, c := range cases {
		total += c.Cost
	}
	return total
}

func averageROI(cases []CaseUnit) float64 {
	if len(cases) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cases {
		sum += c.MonthlyROI
	}
	return sum / float64(len(cases))
}

func avgROIAfterSwap(cases []CaseUnit, dropped, added CaseUnit) float64 {
	if len(cases) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cases {
		sum += c.MonthlyROI
	}
	sum += added.MonthlyROI - dropped.MonthlyROI
	return sum / float64(len(cases))
}

func substitutionMetrics(cases []CaseUnit, excludedBlocks int) SubstitutionMetrics {
	return SubstitutionMetrics{
		TotalCost:      engine.Round2(workingCost(cases)),
		AvgMonthlyROI:  engine.Round4(averageROI(cases)),
		IncludedCases:  len(cases),
		ExcludedBlocks: excludedBlocks,
	}
}

// runFinalize (stage 8) freezes stage 6's cases (not stage 7's advisory
// set) into the per-supplier, per-SKU purchase plan.
func (p *Pipeline) runFinalize(state *State) error {
	if err := requireStage(StageFinalize, StageReallocation, state.Stage6 != nil && len(state.Stage6.Cases) > 0); err != nil {
		return err
	}

	type lineKey struct{ supplier, sku string }
	lines := make(map[lineKey]*PlanLine)
	supplierOrder := make(map[string]bool)

	var totalUnits int
	var totalCost, totalProfit, weighted float64
	for _, c := range state.Stage6.Cases {
		k := lineKey{c.SupplierKey, c.SKU}
		line, ok := lines[k]
		if !ok {
			line = &PlanLine{SKU: c.SKU}
			lines[k] = line
		}
		line.Units += c.Units
		line.Cases++
		line.CostASF = engine.Round2(line.CostASF + c.Cost)
		line.Profit = engine.Round2(line.Profit + c.Profit)

		supplierOrder[c.SupplierKey] = true
		totalUnits += c.Units
		totalCost += c.Cost
		totalProfit += c.Profit
		weighted += c.MonthlyROI * c.Cost
	}

	keys := make([]string, 0, len(supplierOrder))
	for key := range supplierOrder {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	plan := &FinalPlan{}
	for _, key := range keys {
		sup := PlanSupplier{SupplierKey: key}
		var skus []string
		for k := range lines {
			if k.supplier == key {
				skus = append(skus, k.sku)
			}
		}
		sort.Strings(skus)
		for _, sku := range skus {
			line := lines[lineKey{key, sku}]
			sup.Lines = append(sup.Lines, *line)
			sup.CostASF = engine.Round2(sup.CostASF + line.CostASF)
			sup.Profit = engine.Round2(sup.Profit + line.Profit)
		}
		plan.Suppliers = append(plan.Suppliers, sup)
	}

	summary := PlanSummary{
		TotalUnits:      totalUnits,
		BudgetUsed:      engine.Round2(totalCost),
		BudgetRemaining: engine.Round2(state.Inputs.Budget - totalCost),
		ExpectedProfit:  engine.Round2(totalProfit),
	}
	if totalCost > 0 {
		summary.MonthlyROI = engine.Round4(weighted / totalCost)
	}
	plan.Summary = summary

	state.Stage8 = plan
	return nil
}

// productIndex maps normalized supplier key and SKU to the product record.
func productIndex(state *State) map[string]map[string]domain.Product {
	index := make(map[string]map[string]domain.Product)
	for _, prod := range state.Data.Products {
		key := domain.NormalizeSupplierKey(prod.SupplierKey)
		if index[key] == nil {
			index[key] = make(map[string]domain.Product)
		}
		index[key][prod.SKU] = prod
	}
	return index
}

// blockShipment turns an MOQ block into shipment lines.
func blockShipment(block MOQBlock, products map[string]map[string]domain.Product) []engine.ShipmentLine {
	var lines []engine.ShipmentLine
	for _, bl := range block.Lines {
		prod, ok := products[block.SupplierKey][bl.SKU]
		if !ok {
			continue
		}
		lines = append(lines, engine.ShipmentLine{Product: prod, Units: bl.Units})
	}
	return lines
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
