// internal/ingest/csv.go

// Package ingest parses the CSV exports that feed an allocation request:
// product candidates, supplier terms and freight tariffs. Column matching is
// alias-based so exports from different upstream tools load without renaming.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oplift/buyplan/internal/domain"
)

// normalizeColumnName lowercases and strips separators so "Supplier Price",
// "supplier_price" and "SUPPLIER-PRICE" all match.
func normalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, ".", "")
	return strings.Join(strings.Fields(name), " ")
}

type csvTable struct {
	header  []string
	records [][]string
}

func readTable(r io.Reader) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		records = append(records, record)
	}

	return &csvTable{header: header, records: records}, nil
}

func (t *csvTable) colIndex(names ...string) int {
	targets := make(map[string]struct{}, len(names))
	for _, name := range names {
		targets[normalizeColumnName(name)] = struct{}{}
	}
	for i, h := range t.header {
		if _, ok := targets[normalizeColumnName(h)]; ok {
			return i
		}
	}
	return -1
}

func get(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseFloat(record []string, idx int) float64 {
	v := get(record, idx)
	if v == "" {
		return 0
	}
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimPrefix(v, "£")
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

func parseInt(record []string, idx int) int {
	return int(parseFloat(record, idx))
}

// ReadProducts parses a product candidate export. Rows without a SKU are
// skipped; ineligible rows are kept so the pipeline can report exclusions.
func ReadProducts(r io.Reader) ([]domain.Product, error) {
	table, err := readTable(r)
	if err != nil {
		return nil, fmt.Errorf("products csv: %w", err)
	}

	idxSKU := table.colIndex("sku", "asin")
	idxTitle := table.colIndex("title", "product name", "name")
	idxSupplier := table.colIndex("supplier", "supplier key", "supplier name")
	idxPrice := table.colIndex("supplier price", "unit price", "cost")
	idxAmazonPrice := table.colIndex("amazon price", "sale price")
	idxAmazonFees := table.colIndex("amazon fees", "fees")
	idxVAT := table.colIndex("vat per unit", "vat")
	idxMonthlySales := table.colIndex("monthly sales", "sales per month")
	idxSellers := table.colIndex("seller count", "sellers")
	idxCaseSize := table.colIndex("case size", "units per case")
	idxLength := table.colIndex("length cm", "length")
	idxWidth := table.colIndex("width cm", "width")
	idxHeight := table.colIndex("height cm", "height")
	idxWeight := table.colIndex("weight kg", "weight")

	if idxSKU < 0 || idxSupplier < 0 || idxPrice < 0 {
		return nil, fmt.Errorf("products csv: missing required columns (sku, supplier, supplier price)")
	}

	products := make([]domain.Product, 0, len(table.records))
	for _, record := range table.records {
		sku := get(record, idxSKU)
		if sku == "" {
			continue
		}
		products = append(products, domain.Product{
			SKU:           sku,
			Title:         get(record, idxTitle),
			SupplierKey:   domain.NormalizeSupplierKey(get(record, idxSupplier)),
			SupplierPrice: parseFloat(record, idxPrice),
			AmazonPrice:   parseFloat(record, idxAmazonPrice),
			AmazonFees:    parseFloat(record, idxAmazonFees),
			VATPerUnit:    parseFloat(record, idxVAT),
			MonthlySales:  parseFloat(record, idxMonthlySales),
			SellerCount:   parseInt(record, idxSellers),
			CaseSize:      parseInt(record, idxCaseSize),
			LengthCm:      parseFloat(record, idxLength),
			WidthCm:       parseFloat(record, idxWidth),
			HeightCm:      parseFloat(record, idxHeight),
			WeightKg:      parseFloat(record, idxWeight),
		})
	}
	return products, nil
}

// ReadSupplierTerms parses a supplier terms export. Packaging weight may be
// given as a percent ("5" or "5%") and is stored as a fraction.
func ReadSupplierTerms(r io.Reader) ([]domain.SupplierTerms, error) {
	table, err := readTable(r)
	if err != nil {
		return nil, fmt.Errorf("supplier terms csv: %w", err)
	}

	idxKey := table.colIndex("supplier", "supplier key")
	idxName := table.colIndex("supplier name", "name")
	idxCountry := table.colIndex("country", "origin")
	idxMode := table.colIndex("freight mode", "mode", "shipping mode")
	idxPackaging := table.colIndex("packaging type", "packaging")
	idxPackagingPct := table.colIndex("packaging weight percent", "packaging weight")
	idxMOQ := table.colIndex("moq gbp", "moq", "minimum order")

	if idxKey < 0 {
		return nil, fmt.Errorf("supplier terms csv: missing supplier column")
	}

	terms := make([]domain.SupplierTerms, 0, len(table.records))
	for _, record := range table.records {
		key := get(record, idxKey)
		if key == "" {
			continue
		}

		pct := parseFloat(record, idxPackagingPct)
		if pct > 1 {
			pct = pct / 100
		}

		terms = append(terms, domain.SupplierTerms{
			SupplierKey:            domain.NormalizeSupplierKey(key),
			SupplierName:           get(record, idxName),
			Country:                get(record, idxCountry),
			FreightMode:            normalizeMode(get(record, idxMode)),
			PackagingType:          normalizePackaging(get(record, idxPackaging)),
			PackagingWeightPercent: pct,
			MOQGBP:                 parseFloat(record, idxMOQ),
		})
	}
	return terms, nil
}

// ReadFreightBands parses a banded tariff export into one curve per
// region x mode x packaging group, bands ordered by min weight.
func ReadFreightBands(r io.Reader) ([]domain.FreightCurve, error) {
	table, err := readTable(r)
	if err != nil {
		return nil, fmt.Errorf("freight bands csv: %w", err)
	}

	idxRegion := table.colIndex("region", "country")
	idxMode := table.colIndex("mode", "freight mode")
	idxPackaging := table.colIndex("packaging", "packaging type")
	idxMin := table.colIndex("min kg", "min weight")
	idxMax := table.colIndex("max kg", "max weight")
	idxIntercept := table.colIndex("intercept", "base")
	idxSlope := table.colIndex("slope", "rate per kg")
	idxSurcharge := table.colIndex("base fuel surcharge", "fuel surcharge", "surcharge")

	if idxRegion < 0 || idxMode < 0 {
		return nil, fmt.Errorf("freight bands csv: missing region or mode column")
	}

	type curveKey struct {
		region, mode, packaging string
	}
	grouped := make(map[curveKey][]domain.RateBand)
	var order []curveKey
	for _, record := range table.records {
		key := curveKey{
			region:    get(record, idxRegion),
			mode:      normalizeMode(get(record, idxMode)),
			packaging: normalizePackaging(get(record, idxPackaging)),
		}
		if key.region == "" {
			continue
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], domain.RateBand{
			MinKg:             parseFloat(record, idxMin),
			MaxKg:             parseFloat(record, idxMax),
			Intercept:         parseFloat(record, idxIntercept),
			Slope:             parseFloat(record, idxSlope),
			BaseFuelSurcharge: get(record, idxSurcharge),
		})
	}

	curves := make([]domain.FreightCurve, 0, len(order))
	for _, key := range order {
		curves = append(curves, domain.FreightCurve{
			Region:    key.region,
			Mode:      key.mode,
			Packaging: key.packaging,
			Bands:     grouped[key],
		})
	}
	return curves, nil
}

func normalizeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "sea", "ocean":
		return domain.ModeSea
	case "air":
		return domain.ModeAir
	case "road", "truck", "ground", "":
		return domain.ModeRoad
	default:
		return strings.TrimSpace(mode)
	}
}

func normalizePackaging(packaging string) string {
	switch strings.ToLower(strings.TrimSpace(packaging)) {
	case "box", "boxed", "carton":
		return domain.PackagingBox
	case "pallet", "palletised", "palletized":
		return domain.PackagingPallet
	case "courier", "courier candidate", "parcel":
		return domain.PackagingCourierCandidate
	case "":
		return domain.PackagingAny
	default:
		return domain.PackagingAny
	}
}
