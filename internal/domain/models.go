// internal/domain/models.go
package domain

import "strings"

// Freight modes supported by the cost model.
const (
	ModeRoad = "Road"
	ModeSea  = "Sea"
	ModeAir  = "Air"
)

// Packaging types. CourierCandidate is boxed freight small enough to quote
// as parcels; it shares the box surcharge.
const (
	PackagingBox              = "Box"
	PackagingPallet           = "Pallet"
	PackagingCourierCandidate = "CourierCandidate"
	PackagingAny              = "Any"
)

// Product is a candidate SKU from one supplier. SupplierPrice is the unit
// cost before shipping and freight (BSF).
type Product struct {
	SKU           string  `json:"sku" db:"sku"`
	Title         string  `json:"title" db:"title"`
	SupplierKey   string  `json:"supplier_key" db:"supplier_key"`
	SupplierPrice float64 `json:"supplier_price" db:"supplier_price"`
	AmazonPrice   float64 `json:"amazon_price" db:"amazon_price"`
	AmazonFees    float64 `json:"amazon_fees" db:"amazon_fees"`
	VATPerUnit    float64 `json:"vat_per_unit" db:"vat_per_unit"`
	MonthlySales  float64 `json:"monthly_sales" db:"monthly_sales"`
	SellerCount   int     `json:"seller_count" db:"seller_count"`
	CaseSize      int     `json:"case_size" db:"case_size"`
	LengthCm      float64 `json:"length_cm" db:"length_cm"`
	WidthCm       float64 `json:"width_cm" db:"width_cm"`
	HeightCm      float64 `json:"height_cm" db:"height_cm"`
	WeightKg      float64 `json:"weight_kg" db:"weight_kg"`
}

// Eligible reports whether the product can be purchased at all. Products
// without a positive unit cost or market velocity are excluded everywhere.
func (p Product) Eligible() bool {
	return p.SupplierPrice > 0 && p.MonthlySales > 0
}

// NormalizedCaseSize treats missing or zero case sizes as single-unit cases.
func (p Product) NormalizedCaseSize() int {
	if p.CaseSize < 1 {
		return 1
	}
	return p.CaseSize
}

// SupplierTerms carries per-supplier purchasing terms. MOQGBP is a minimum
// spend (not a unit count); zero means no minimum.
type SupplierTerms struct {
	SupplierKey            string  `json:"supplier_key" db:"supplier_key"`
	SupplierName           string  `json:"supplier_name" db:"supplier_name"`
	Country                string  `json:"country" db:"country"`
	FreightMode            string  `json:"freight_mode" db:"freight_mode"`
	PackagingType          string  `json:"packaging_type" db:"packaging_type"`
	PackagingWeightPercent float64 `json:"packaging_weight_percent" db:"packaging_weight_percent"`
	MOQGBP                 float64 `json:"moq_gbp" db:"moq_gbp"`
}

// IsUK reports whether the supplier ships domestically. Derived from the
// country string so upstream data can use any of the common spellings.
func (s SupplierTerms) IsUK() bool {
	switch strings.ToUpper(strings.TrimSpace(s.Country)) {
	case "UK", "GB", "GBR", "UNITED KINGDOM", "GREAT BRITAIN", "ENGLAND", "SCOTLAND", "WALES", "NORTHERN IRELAND":
		return true
	}
	return false
}

// RateBand is one weight bucket of a regression-form freight curve.
// BaseFuelSurcharge keeps the raw tariff string: "12%" applies on top of the
// band cost, "0.35/kg" applies per shipped kilogram.
type RateBand struct {
	MinKg             float64 `json:"min_kg" db:"min_kg"`
	MaxKg             float64 `json:"max_kg" db:"max_kg"`
	Intercept         float64 `json:"intercept" db:"intercept"`
	Slope             float64 `json:"slope" db:"slope"`
	BaseFuelSurcharge string  `json:"base_fuel_surcharge" db:"base_fuel_surcharge"`
}

// CurvePoint is one knot of a piecewise-linear freight curve.
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FreightCurve is a region x mode x packaging tariff. Exactly one of Bands
// or Points is populated. When Points is used, UseCBM selects whether X is
// volume (m3) instead of weight (kg).
type FreightCurve struct {
	Region    string       `json:"region"`
	Mode      string       `json:"mode"`
	Packaging string       `json:"packaging"`
	Bands     []RateBand   `json:"bands,omitempty"`
	Points    []CurvePoint `json:"points,omitempty"`
	UseCBM    bool         `json:"use_cbm,omitempty"`
}

// FreightConfig is the generic fallback rate model used when no curve
// matches a shipment.
type FreightConfig struct {
	RatePerKG            float64 `json:"rate_per_kg" db:"rate_per_kg"`
	RatePerCBM           float64 `json:"rate_per_cbm" db:"rate_per_cbm"`
	MinCharge            float64 `json:"min_charge" db:"min_charge"`
	BoxSurcharge         float64 `json:"box_surcharge" db:"box_surcharge"`
	PalletSurcharge      float64 `json:"pallet_surcharge" db:"pallet_surcharge"`
	HandlingFee          float64 `json:"handling_fee" db:"handling_fee"`
	DomesticUKRatePerBox float64 `json:"domestic_uk_rate_per_box" db:"domestic_uk_rate_per_box"`
}

// ChurnOverride is a per-supplier override for churn inputs. PayoutDays of
// zero means "use the title-derived payout delay".
type ChurnOverride struct {
	LeadDays   int `json:"lead_days"`
	PayoutDays int `json:"payout_days"`
}

// RegressionInfo records whether a freight curve matched the shipment and,
// when it did not, why the generic rate model was used instead.
type RegressionInfo struct {
	Found   bool   `json:"found"`
	Message string `json:"message,omitempty"`
}

// Freight pricing methods, recorded on every quote.
const (
	FreightMethodCurve    = "curve"
	FreightMethodGeneric  = "generic"
	FreightMethodDomestic = "domestic_uk"
)

// ShipmentQuote is the shipment-level freight and currency cost of a bundle.
type ShipmentQuote struct {
	WeightKg    float64        `json:"weight_kg"`
	CBM         float64        `json:"cbm"`
	Boxes       int            `json:"boxes"`
	Pallets     int            `json:"pallets"`
	FreightCost float64        `json:"freight_cost"`
	CurrencyFee float64        `json:"currency_fee"`
	Multiplier  float64        `json:"multiplier"`
	Method      string         `json:"method"`
	Regression  RegressionInfo `json:"regression"`
}

// PurchaseOption is one SKU at one case count, fully priced. Immutable once
// computed; re-pricing a changed shipment produces new options.
type PurchaseOption struct {
	SKU               string  `json:"sku"`
	Title             string  `json:"title,omitempty"`
	Units             int     `json:"units"`
	Cases             int     `json:"cases"`
	CaseSize          int     `json:"case_size"`
	CostBSF           float64 `json:"cost_bsf"`
	CostASF           float64 `json:"cost_asf"`
	LandedCostPerUnit float64 `json:"landed_cost_per_unit"`
	ProfitPerUnit     float64 `json:"profit_per_unit"`
	ROI               float64 `json:"roi"`
	ChurnWeeks        float64 `json:"churn_weeks"`
	MonthlyROI        float64 `json:"monthly_roi"`
}

// Bundle is a supplier-scoped set of purchase options priced as a single
// shipment. Eligible only when CostASF clears the supplier MOQ.
type Bundle struct {
	SupplierKey string           `json:"supplier_key"`
	Options     []PurchaseOption `json:"options"`
	Freight     ShipmentQuote    `json:"freight"`
	CostBSF     float64          `json:"cost_bsf"`
	CostASF     float64          `json:"cost_asf"`
	Profit      float64          `json:"profit"`
	ChurnWeeks  float64          `json:"churn_weeks"`
	MonthlyROI  float64          `json:"monthly_roi"`
}

// AllocationSummary aggregates an allocation (global or per supplier).
type AllocationSummary struct {
	TotalUnits         int     `json:"total_units"`
	TotalCostASF       float64 `json:"total_cost_asf"`
	ExpectedProfit     float64 `json:"expected_profit"`
	RemainingBudget    float64 `json:"remaining_budget"`
	ROI                float64 `json:"roi"`
	WeightedChurnWeeks float64 `json:"weighted_churn_weeks"`
	MonthlyROI         float64 `json:"monthly_roi"`
}

// SupplierAllocation is the chosen bundle of one supplier in the result.
type SupplierAllocation struct {
	SupplierKey  string            `json:"supplier_key"`
	SupplierName string            `json:"supplier_name"`
	Freight      ShipmentQuote     `json:"freight"`
	Summary      AllocationSummary `json:"summary"`
	Products     []PurchaseOption  `json:"products"`
}

// AllocationResult is the monolithic path output.
type AllocationResult struct {
	Summary   AllocationSummary    `json:"summary"`
	Suppliers []SupplierAllocation `json:"suppliers"`
}

// AllocationRequest is the engine boundary input. Freight curves, supplier
// terms and rates are resolved by the caller and passed in as plain data.
type AllocationRequest struct {
	Budget        float64                  `json:"budget"`
	Products      []Product                `json:"products"`
	Suppliers     []SupplierTerms          `json:"suppliers"`
	FreightCurves []FreightCurve           `json:"freight_curves"`
	FreightConfig FreightConfig            `json:"freight_config"`
	ChurnSettings map[string]ChurnOverride `json:"churn_settings,omitempty"`
}

// NormalizeSupplierKey canonicalizes supplier identity so products, terms
// and churn settings join reliably.
func NormalizeSupplierKey(key string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.TrimSpace(key)), " "))
}
