package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSupplierKey(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"acme", "ACME"},
		{"  Acme   Trading  ", "ACME TRADING"},
		{"acme\ttrading", "ACME TRADING"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeSupplierKey(tt.in))
	}
}

func TestSupplierTermsIsUK(t *testing.T) {
	uk := []string{"UK", "uk", "GB", "GBR", "United Kingdom", " great britain ", "England"}
	for _, c := range uk {
		assert.True(t, SupplierTerms{Country: c}.IsUK(), c)
	}

	notUK := []string{"Germany", "US", "", "Ukraine"}
	for _, c := range notUK {
		assert.False(t, SupplierTerms{Country: c}.IsUK(), c)
	}
}

func TestProductEligible(t *testing.T) {
	assert.True(t, Product{SupplierPrice: 1, MonthlySales: 1}.Eligible())
	assert.False(t, Product{SupplierPrice: 0, MonthlySales: 1}.Eligible())
	assert.False(t, Product{SupplierPrice: 1, MonthlySales: 0}.Eligible())
}

func TestNormalizedCaseSize(t *testing.T) {
	assert.Equal(t, 1, Product{CaseSize: 0}.NormalizedCaseSize())
	assert.Equal(t, 1, Product{CaseSize: -2}.NormalizedCaseSize())
	assert.Equal(t, 6, Product{CaseSize: 6}.NormalizedCaseSize())
}
