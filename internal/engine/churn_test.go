package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayoutDays(t *testing.T) {
	tests := []struct {
		title    string
		expected int
	}{
		{"Dell Latitude 5540 Laptop", businessPayoutDays},
		{"LENOVO ThinkPad Charger", businessPayoutDays},
		{"Microsoft Surface Pen", businessPayoutDays},
		{"USB-C Docking Station", businessPayoutDays},
		{"27 inch 4K Monitor", businessPayoutDays},
		{"hp 305 ink cartridge", businessPayoutDays},
		{"Stainless Steel Coffee Maker", standardPayoutDays},
		{"", standardPayoutDays},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, PayoutDays(tt.title))
		})
	}
}

func TestDailySales(t *testing.T) {
	assert.Equal(t, 1.0, DailySales(60, 2))
	// Seller counts below one count as one.
	assert.Equal(t, 2.0, DailySales(60, 0))
	assert.Equal(t, 2.0, DailySales(60, -3))
}

func TestDaysOfStock(t *testing.T) {
	assert.Equal(t, 4, DaysOfStock(10, 3))
	assert.Equal(t, 10, DaysOfStock(10, 1))
	assert.Equal(t, 0, DaysOfStock(10, 0))
	assert.Equal(t, 0, DaysOfStock(0, 3))
}

func TestChurnWeeks(t *testing.T) {
	// (0 + 10 + 14) / 7
	assert.Equal(t, 3.4286, ChurnWeeks(0, 10, 14, 0, 15))

	// Queued weeks add on top.
	assert.Equal(t, 5.4286, ChurnWeeks(0, 10, 14, 2, 15))

	// Cap applies.
	assert.Equal(t, 15.0, ChurnWeeks(30, 60, 42, 0, 15))

	// Zero cap disables capping: 132/7.
	assert.Equal(t, 18.8571, ChurnWeeks(30, 60, 42, 0, 0))
}

func TestROI(t *testing.T) {
	assert.Equal(t, 0.2, ROI(2, 10))
	assert.Equal(t, 0.0, ROI(2, 0))
	assert.Equal(t, 0.0, ROI(2, -1))
	assert.Equal(t, -0.1, ROI(-1, 10))
}

func TestMonthlyROI(t *testing.T) {
	// Churn of exactly one month returns the plain ROI.
	assert.Equal(t, 0.2, MonthlyROI(0.2, weeksPerMonth))
	// Faster churn amplifies, slower churn dampens.
	assert.Equal(t, 0.4, MonthlyROI(0.2, weeksPerMonth/2))
	assert.Equal(t, 0.1, MonthlyROI(0.2, weeksPerMonth*2))
	assert.Equal(t, 0.0, MonthlyROI(0.2, 0))
}
