package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/oplift/buyplan/internal/domain"
)

// Protocol constants shared by both allocation paths. These are fixed by the
// pricing contract, not configuration.
const (
	// currencyFeeRate is the flat FX conversion fee on non-UK spend.
	currencyFeeRate = 0.0067

	// palletCBM is the volume bucket used to derive pallet counts from CBM.
	palletCBM = 1.2
)

// Round2 rounds half-up at 2 decimal places (currency values).
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// Round3 rounds half-up at 3 decimal places (CBM values).
func Round3(v float64) float64 {
	return math.Floor(v*1000+0.5) / 1000
}

// Round4 rounds half-up at 4 decimal places (ratios: ROI, multipliers,
// churn weeks).
func Round4(v float64) float64 {
	return math.Floor(v*10000+0.5) / 10000
}

// ShipmentLine is one product at a chosen unit count inside a shipment.
type ShipmentLine struct {
	Product domain.Product
	Units   int
}

// Cases returns the number of whole cases the line occupies.
func (l ShipmentLine) Cases() int {
	cs := l.Product.NormalizedCaseSize()
	return (l.Units + cs - 1) / cs
}

// TotalWeight sums case weights across the shipment and scales by the
// supplier packaging allowance (a fraction, 0.1 = 10%). Products without a
// weight contribute nothing.
func TotalWeight(lines []ShipmentLine, packagingWeightPercent float64) float64 {
	var total float64
	for _, l := range lines {
		if l.Product.WeightKg <= 0 || l.Units <= 0 {
			continue
		}
		total += float64(l.Cases()) * l.Product.WeightKg
	}
	return Round2(total * (1 + packagingWeightPercent))
}

// TotalCBM sums case volumes across the shipment, cm3 converted to m3.
func TotalCBM(lines []ShipmentLine) float64 {
	var total float64
	for _, l := range lines {
		if l.Units <= 0 {
			continue
		}
		p := l.Product
		total += float64(l.Cases()) * (p.LengthCm * p.WidthCm * p.HeightCm) / 1e6
	}
	return Round3(total)
}

// TotalCases counts whole cases across the shipment.
func TotalCases(lines []ShipmentLine) int {
	var total int
	for _, l := range lines {
		if l.Units <= 0 {
			continue
		}
		total += l.Cases()
	}
	return total
}

// PalletCount derives a pallet count from shipment volume. Any shipment that
// palletizes occupies at least one pallet.
func PalletCount(cbm float64) int {
	if cbm <= 0 {
		return 1
	}
	return int(math.Ceil(cbm / palletCBM))
}

// packagingBucket resolves the curve packaging lane for a supplier's
// packaging type and freight mode. Pallets only get a dedicated lane on sea
// freight; boxed goods always use the box lane.
func packagingBucket(packagingType, mode string) string {
	switch packagingType {
	case domain.PackagingPallet:
		if mode == domain.ModeSea {
			return domain.PackagingPallet
		}
		return domain.PackagingAny
	case domain.PackagingBox:
		return domain.PackagingBox
	default:
		return domain.PackagingAny
	}
}

// FreightFromCurve prices a shipment against the curve matching
// (region, mode, packaging bucket). The second return is false when no curve
// matches and the caller must fall back to the generic rate model.
func FreightFromCurve(curves []domain.FreightCurve, region, mode, packagingType string, weightKg, cbm float64) (float64, bool) {
	bucket := packagingBucket(packagingType, mode)

	for _, c := range curves {
		if !strings.EqualFold(strings.TrimSpace(c.Region), strings.TrimSpace(region)) ||
			!strings.EqualFold(strings.TrimSpace(c.Mode), strings.TrimSpace(mode)) ||
			!strings.EqualFold(strings.TrimSpace(c.Packaging), bucket) {
			continue
		}

		if len(c.Points) > 0 {
			x := weightKg
			if c.UseCBM {
				x = cbm
			}
			return Round2(interpolatePoints(c.Points, x)), true
		}

		if len(c.Bands) > 0 {
			band := selectBand(c.Bands, weightKg)
			cost := band.Intercept + band.Slope*weightKg
			cost += surchargeFee(band.BaseFuelSurcharge, cost, weightKg)
			return Round2(cost), true
		}
	}

	return 0, false
}

// selectBand picks the band containing the weight. Weights below every band
// minimum use the lowest band; weights above every maximum use the highest.
func selectBand(bands []domain.RateBand, weightKg float64) domain.RateBand {
	lowest := bands[0]
	highest := bands[0]
	for _, b := range bands {
		if weightKg >= b.MinKg && weightKg <= b.MaxKg {
			return b
		}
		if b.MinKg < lowest.MinKg {
			lowest = b
		}
		if b.MaxKg > highest.MaxKg {
			highest = b
		}
	}
	if weightKg < lowest.MinKg {
		return lowest
	}
	return highest
}

// surchargeFee parses the raw tariff surcharge string. A trailing "%" means
// a percentage of the band cost; "/kg" means an absolute per-kilogram rate.
// Anything else contributes nothing.
func surchargeFee(raw string, cost, weightKg float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	switch {
	case strings.Contains(raw, "%"):
		num := strings.TrimSpace(strings.TrimSuffix(raw, "%"))
		pct, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		return cost * pct / 100
	case strings.Contains(raw, "/kg"):
		num := strings.TrimSpace(strings.TrimSuffix(raw, "/kg"))
		rate, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		return rate * weightKg
	}
	return 0
}

// interpolatePoints evaluates a piecewise-linear curve at x, clamping to the
// boundary values outside the tabulated range. Points must be sorted by X.
func interpolatePoints(points []domain.CurvePoint, x float64) float64 {
	if x <= points[0].X {
		return points[0].Y
	}
	last := points[len(points)-1]
	if x >= last.X {
		return last.Y
	}
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if x <= b.X {
			if b.X == a.X {
				return b.Y
			}
			t := (x - a.X) / (b.X - a.X)
			return a.Y + t*(b.Y-a.Y)
		}
	}
	return last.Y
}

// FreightGeneric prices a shipment with the fallback rate model: the max of
// weight, volume and minimum charges, plus packaging surcharges and the flat
// handling fee.
func FreightGeneric(cfg domain.FreightConfig, weightKg, cbm float64, packagingType string, boxCount, palletCount int) float64 {
	cost := math.Max(weightKg*cfg.RatePerKG, cbm*cfg.RatePerCBM)
	cost = math.Max(cost, cfg.MinCharge)

	switch packagingType {
	case domain.PackagingBox, domain.PackagingCourierCandidate:
		cost += float64(boxCount) * cfg.BoxSurcharge
	case domain.PackagingPallet:
		cost += float64(palletCount) * cfg.PalletSurcharge
	}

	cost += cfg.HandlingFee
	return Round2(cost)
}

// CurrencyFee is the FX conversion fee on the BSF spend. Domestic (UK)
// suppliers are invoiced in GBP and pay nothing.
func CurrencyFee(costBSF float64, isUK bool) float64 {
	if isUK || costBSF <= 0 {
		return 0
	}
	return Round2(costBSF * currencyFeeRate)
}

// FreightMultiplier converts shipment-level freight and currency costs into
// a landed-cost multiplier on BSF spend. A non-positive spend yields 1.0.
func FreightMultiplier(costBSF, freightCost, currencyFee float64) float64 {
	if costBSF <= 0 {
		return 1.0
	}
	return Round4(1 + (freightCost+currencyFee)/costBSF)
}
