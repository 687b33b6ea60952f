package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oplift/buyplan/internal/domain"
)

func TestReadProducts(t *testing.T) {
	csv := strings.Join([]string{
		"SKU,Title,Supplier,Supplier Price,Amazon Price,Amazon Fees,VAT,Monthly Sales,Sellers,Case Size,Length,Width,Height,Weight",
		`SKU-1,Dell 24 Monitor,acme  trading,"1,250.00",1800,270,300,45,3,2,60,40,15,7.5`,
		",skipped row with no sku,ACME,10,20,2,2,5,1,1,1,1,1,1",
		"SKU-2,Kettle,Beta,£9.99,25,3,2,120,2,6,30,20,20,1.2",
	}, "\n")

	products, err := ReadProducts(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, products, 2, "rows without a SKU are skipped")

	first := products[0]
	assert.Equal(t, "SKU-1", first.SKU)
	assert.Equal(t, "ACME TRADING", first.SupplierKey, "supplier keys are normalized")
	assert.Equal(t, 1250.0, first.SupplierPrice, "thousands separators are stripped")
	assert.Equal(t, 3, first.SellerCount)
	assert.Equal(t, 2, first.CaseSize)
	assert.Equal(t, 7.5, first.WeightKg)

	second := products[1]
	assert.Equal(t, 9.99, second.SupplierPrice, "currency symbols are stripped")
	assert.Equal(t, 120.0, second.MonthlySales)
}

func TestReadProductsColumnAliases(t *testing.T) {
	csv := "asin,product_name,supplier-name,COST,sale price,fees,vat,sales per month,sellers,units per case,length,width,height,weight\n" +
		"B00X,Widget,Gamma,5,12,1,1,30,1,4,10,10,10,0.5\n"

	products, err := ReadProducts(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "B00X", products[0].SKU)
	assert.Equal(t, "Widget", products[0].Title)
	assert.Equal(t, 5.0, products[0].SupplierPrice)
	assert.Equal(t, 4, products[0].CaseSize)
}

func TestReadProductsMissingRequiredColumns(t *testing.T) {
	csv := "title,price\nWidget,5\n"
	_, err := ReadProducts(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestReadSupplierTerms(t *testing.T) {
	csv := strings.Join([]string{
		"Supplier,Supplier Name,Country,Freight Mode,Packaging Type,Packaging Weight Percent,MOQ GBP",
		"acme,Acme Ltd,UK,road,box,5,0",
		`beta,Beta GmbH,Germany,SEA,palletised,0.08,"2,500"`,
		"gamma,Gamma BV,Netherlands,,,,",
	}, "\n")

	terms, err := ReadSupplierTerms(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, terms, 3)

	acme := terms[0]
	assert.Equal(t, "ACME", acme.SupplierKey)
	assert.Equal(t, domain.ModeRoad, acme.FreightMode)
	assert.Equal(t, domain.PackagingBox, acme.PackagingType)
	assert.Equal(t, 0.05, acme.PackagingWeightPercent, "whole percents become fractions")

	beta := terms[1]
	assert.Equal(t, domain.ModeSea, beta.FreightMode)
	assert.Equal(t, domain.PackagingPallet, beta.PackagingType)
	assert.Equal(t, 0.08, beta.PackagingWeightPercent, "fractions pass through unchanged")
	assert.Equal(t, 2500.0, beta.MOQGBP)

	gamma := terms[2]
	assert.Equal(t, domain.ModeRoad, gamma.FreightMode, "blank mode defaults to road")
	assert.Equal(t, domain.PackagingAny, gamma.PackagingType)
}

func TestReadFreightBands(t *testing.T) {
	csv := strings.Join([]string{
		"Region,Mode,Packaging,Min Kg,Max Kg,Intercept,Slope,Fuel Surcharge",
		"Germany,road,box,0,100,20,0.5,12%",
		"Germany,road,box,100,500,40,0.3,12%",
		"China,sea,pallet,0,1000,150,0.1,0.05/kg",
	}, "\n")

	curves, err := ReadFreightBands(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, curves, 2, "rows group into one curve per region/mode/packaging")

	germany := curves[0]
	assert.Equal(t, "Germany", germany.Region)
	assert.Equal(t, domain.ModeRoad, germany.Mode)
	assert.Equal(t, domain.PackagingBox, germany.Packaging)
	require.Len(t, germany.Bands, 2)
	assert.Equal(t, 0.5, germany.Bands[0].Slope)
	assert.Equal(t, "12%", germany.Bands[0].BaseFuelSurcharge)

	china := curves[1]
	assert.Equal(t, domain.ModeSea, china.Mode)
	assert.Equal(t, domain.PackagingPallet, china.Packaging)
	require.Len(t, china.Bands, 1)
	assert.Equal(t, "0.05/kg", china.Bands[0].BaseFuelSurcharge)
}

func TestNormalizeColumnName(t *testing.T) {
	assert.Equal(t, "supplier price", normalizeColumnName(" Supplier_Price "))
	assert.Equal(t, "max daily sales", normalizeColumnName("Max. Daily-Sales"))
	assert.Equal(t, "sku", normalizeColumnName("SKU"))
}
