// Package pipeline is the staged decomposition of the allocation problem:
// eight named, pure transforms over an explicit state object. Every stage's
// output is kept so any stage can be re-run or audited independently.
// Stages do not cascade; the caller drives them one at a time and forwards
// the state itself.
package pipeline

import (
	"time"

	"github.com/oplift/buyplan/internal/domain"
)

// Stage numbers. Stage 1 (load) runs implicitly whenever no prior state is
// supplied.
const (
	StageLoad         = 1
	StageMOQBlocks    = 2
	StageEstimatedASF = 3
	StageRankCut      = 4
	StageExactASF     = 5
	StageReallocation = 6
	StageSubstitution = 7
	StageFinalize     = 8
)

// StageName returns the audit name of a stage.
func StageName(stage int) string {
	switch stage {
	case StageLoad:
		return "load"
	case StageMOQBlocks:
		return "moq_blocks"
	case StageEstimatedASF:
		return "estimated_asf"
	case StageRankCut:
		return "rank_cut"
	case StageExactASF:
		return "exact_asf"
	case StageReallocation:
		return "case_reallocation"
	case StageSubstitution:
		return "supplier_substitution"
	case StageFinalize:
		return "finalize"
	}
	return "unknown"
}

// Rejection reasons recorded by the budget cut line.
const (
	ReasonNonPositiveASF     = "non_positive_asf"
	ReasonInsufficientBudget = "insufficient_budget"
)

// Meta tracks which stage last ran and when.
type Meta struct {
	Stage     int       `json:"stage"`
	StageName string    `json:"stage_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Inputs are the caller-supplied run parameters.
type Inputs struct {
	Budget float64 `json:"budget"`
}

// Data is the normalized copy of the caller's master data, produced by the
// load stage and read-only afterwards.
type Data struct {
	Suppliers     []domain.SupplierTerms          `json:"suppliers"`
	Products      []domain.Product                `json:"products"`
	FreightCurves []domain.FreightCurve           `json:"freight_curves"`
	FreightConfig domain.FreightConfig            `json:"freight_config"`
	ChurnSettings map[string]domain.ChurnOverride `json:"churn_settings,omitempty"`
}

// LoadSummary is stage 1's output slot.
type LoadSummary struct {
	SupplierCount    int      `json:"supplier_count"`
	ProductCount     int      `json:"product_count"`
	ExcludedProducts []string `json:"excluded_products,omitempty"`
}

// BlockLine is one SKU's contribution to an MOQ block, in whole cases.
type BlockLine struct {
	SKU             string  `json:"sku"`
	Cases           int     `json:"cases"`
	Units           int     `json:"units"`
	UnitPrice       float64 `json:"unit_price"`
	SpendBSF        float64 `json:"spend_bsf"`
	ProxyMonthlyROI float64 `json:"proxy_monthly_roi"`
}

// MOQBlock is the minimum viable purchase for one supplier: whole cases of
// its best products until the MOQ spend is reached.
type MOQBlock struct {
	SupplierKey string      `json:"supplier_key"`
	Lines       []BlockLine `json:"lines"`
	SpendBSF    float64     `json:"spend_bsf"`
	MOQGBP      float64     `json:"moq_gbp"`
	MOQMet      bool        `json:"moq_met"`
}

// MOQBlocks is stage 2's output slot.
type MOQBlocks struct {
	Blocks []MOQBlock `json:"blocks"`
}

// BlockPricing is one MOQ block priced with estimated (pre-selection)
// freight.
type BlockPricing struct {
	SupplierKey         string                  `json:"supplier_key"`
	Freight             domain.ShipmentQuote    `json:"freight"`
	Lines               []domain.PurchaseOption `json:"lines"`
	CostBSF             float64                 `json:"cost_bsf"`
	CostASF             float64                 `json:"cost_asf"`
	Profit              float64                 `json:"profit"`
	ChurnWeeks          float64                 `json:"churn_weeks"`
	EstimatedMonthlyROI float64                 `json:"estimated_monthly_roi"`
}

// EstimatedASF is stage 3's output slot.
type EstimatedASF struct {
	Blocks []BlockPricing `json:"blocks"`
}

// Rejection records why a supplier block fell below the cut line.
type Rejection struct {
	SupplierKey string  `json:"supplier_key"`
	Reason      string  `json:"reason"`
	CostASF     float64 `json:"cost_asf"`
}

// RankCut is stage 4's output slot: the greedy budget cut line.
type RankCut struct {
	Ranked          []string    `json:"ranked"`
	Selected        []string    `json:"selected"`
	Rejected        []Rejection `json:"rejected"`
	BudgetUsed      float64     `json:"budget_used"`
	BudgetRemaining float64     `json:"budget_remaining"`
}

// SupplierPricing is one selected supplier priced with exact freight.
type SupplierPricing struct {
	SupplierKey string                  `json:"supplier_key"`
	Freight     domain.ShipmentQuote    `json:"freight"`
	Lines       []domain.PurchaseOption `json:"lines"`
	CostBSF     float64                 `json:"cost_bsf"`
	CostASF     float64                 `json:"cost_asf"`
	Profit      float64                 `json:"profit"`
	ChurnWeeks  float64                 `json:"churn_weeks"`
	MonthlyROI  float64                 `json:"monthly_roi"`
}

// ExactASF is stage 5's output slot.
type ExactASF struct {
	Suppliers []SupplierPricing `json:"suppliers"`
}

// CaseUnit is one atomic purchasable case: supplier x SKU x case size.
type CaseUnit struct {
	SupplierKey string  `json:"supplier_key"`
	SKU         string  `json:"sku"`
	Units       int     `json:"units"`
	Cost        float64 `json:"cost"`
	Profit      float64 `json:"profit"`
	MonthlyROI  float64 `json:"monthly_roi"`
}

// CaseReallocation is stage 6's output slot: the case-level local
// optimization bounded by the budget.
type CaseReallocation struct {
	Cases           []CaseUnit `json:"cases"`
	Dropped         []CaseUnit `json:"dropped"`
	TotalCost       float64    `json:"total_cost"`
	BudgetRemaining float64    `json:"budget_remaining"`
}

// SubstitutionMetrics summarizes a case set for before/after comparison.
type SubstitutionMetrics struct {
	TotalCost      float64 `json:"total_cost"`
	AvgMonthlyROI  float64 `json:"avg_monthly_roi"`
	IncludedCases  int     `json:"included_cases"`
	ExcludedBlocks int     `json:"excluded_blocks"`
}

// SubstitutionStep records one attempted swap.
type SubstitutionStep struct {
	DroppedSupplier string  `json:"dropped_supplier"`
	DroppedSKU      string  `json:"dropped_sku"`
	AddedSupplier   string  `json:"added_supplier"`
	DroppedROI      float64 `json:"dropped_roi"`
	AddedROI        float64 `json:"added_roi"`
	Applied         bool    `json:"applied"`
}

// Substitution is stage 7's output slot. Advisory only: it never feeds back
// into stage 8, which aggregates stage 6's cases.
type Substitution struct {
	Before SubstitutionMetrics `json:"before"`
	After  SubstitutionMetrics `json:"after"`
	Steps  []SubstitutionStep  `json:"steps"`
}

// PlanLine is the finalized per-SKU order for one supplier.
type PlanLine struct {
	SKU     string  `json:"sku"`
	Units   int     `json:"units"`
	Cases   int     `json:"cases"`
	CostASF float64 `json:"cost_asf"`
	Profit  float64 `json:"profit"`
}

// PlanSupplier is the finalized order for one supplier.
type PlanSupplier struct {
	SupplierKey string     `json:"supplier_key"`
	Lines       []PlanLine `json:"lines"`
	CostASF     float64    `json:"cost_asf"`
	Profit      float64    `json:"profit"`
}

// PlanSummary is the frozen global view of the plan.
type PlanSummary struct {
	TotalUnits      int     `json:"total_units"`
	BudgetUsed      float64 `json:"budget_used"`
	BudgetRemaining float64 `json:"budget_remaining"`
	ExpectedProfit  float64 `json:"expected_profit"`
	MonthlyROI      float64 `json:"monthly_roi"`
}

// FinalPlan is stage 8's output slot.
type FinalPlan struct {
	Suppliers []PlanSupplier `json:"suppliers"`
	Summary   PlanSummary    `json:"summary"`
}

// State is the explicit record of every stage's output. The pipeline owns
// and threads this value; no stage mutates another stage's slot.
type State struct {
	Meta   Meta   `json:"meta"`
	Inputs Inputs `json:"inputs"`
	Data   Data   `json:"data"`

	Stage1 *LoadSummary      `json:"stage1,omitempty"`
	Stage2 *MOQBlocks        `json:"stage2,omitempty"`
	Stage3 *EstimatedASF     `json:"stage3,omitempty"`
	Stage4 *RankCut          `json:"stage4,omitempty"`
	Stage5 *ExactASF         `json:"stage5,omitempty"`
	Stage6 *CaseReallocation `json:"stage6,omitempty"`
	Stage7 *Substitution     `json:"stage7,omitempty"`
	Stage8 *FinalPlan        `json:"stage8,omitempty"`
}
