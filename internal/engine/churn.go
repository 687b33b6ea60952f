package engine

import (
	"math"
	"strings"
)

// Churn constants fixed by the pricing contract.
const (
	// weeksPerMonth normalizes churn-adjusted ROI to a monthly cadence.
	weeksPerMonth = 4.33

	// standardPayoutDays is the marketplace payout delay for ordinary goods.
	standardPayoutDays = 14

	// businessPayoutDays applies to business-electronics listings, which
	// settle on invoice terms.
	businessPayoutDays = 42
)

// payoutKeywords marks titles that settle on the slower business-electronics
// payout cycle. Matched case-insensitively as substrings; "dock" also covers
// "docks".
var payoutKeywords = []string{"dell", "lenovo", "microsoft", "hp", "dock", "monitor"}

// PayoutDays returns the marketplace payout delay for a product title.
func PayoutDays(title string) int {
	lower := strings.ToLower(title)
	for _, kw := range payoutKeywords {
		if strings.Contains(lower, kw) {
			return businessPayoutDays
		}
	}
	return standardPayoutDays
}

// DailySales is the per-seller daily velocity of a SKU. Seller counts below
// one are treated as one.
func DailySales(monthlySales float64, sellerCount int) float64 {
	if sellerCount < 1 {
		sellerCount = 1
	}
	return monthlySales / float64(sellerCount) / 30
}

// DaysOfStock is how long the purchased units last at the daily velocity,
// rounded up. Zero velocity yields zero days.
func DaysOfStock(units int, dailySales float64) int {
	if dailySales <= 0 || units <= 0 {
		return 0
	}
	return int(math.Ceil(float64(units) / dailySales))
}

// ChurnWeeks is the time-to-cash-recovery: supplier lead time, days of
// stock and payout delay, in weeks, plus any already-queued weeks. A
// positive capWeeks bounds the result; zero disables the cap.
func ChurnWeeks(leadDays, daysOfStock, payoutDays int, queuedWeeks, capWeeks float64) float64 {
	weeks := float64(leadDays+daysOfStock+payoutDays)/7 + queuedWeeks
	if capWeeks > 0 && weeks > capWeeks {
		weeks = capWeeks
	}
	return Round4(weeks)
}

// ROI is per-unit profit over landed cost. Non-positive landed cost yields
// zero.
func ROI(profitPerUnit, landedCostPerUnit float64) float64 {
	if landedCostPerUnit <= 0 {
		return 0
	}
	return Round4(profitPerUnit / landedCostPerUnit)
}

// MonthlyROI normalizes ROI by churn weeks to a monthly cadence so SKUs with
// different sell-through speeds compare directly.
func MonthlyROI(roi, churnWeeks float64) float64 {
	if churnWeeks <= 0 {
		return 0
	}
	return Round4(roi / churnWeeks * weeksPerMonth)
}
