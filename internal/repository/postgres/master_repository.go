// internal/repository/postgres/master_repository.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/oplift/buyplan/internal/domain"
)

// MasterRepository reads the purchasing master data (supplier terms, freight
// tariffs) used to fill in fields a request leaves blank.
type MasterRepository struct {
	db *DB
}

func NewMasterRepository(db *DB) *MasterRepository {
	return &MasterRepository{db: db}
}

// LoadSupplierTerms returns all supplier terms with normalized keys.
func (r *MasterRepository) LoadSupplierTerms(ctx context.Context) ([]domain.SupplierTerms, error) {
	query := `
		SELECT supplier_key, supplier_name, country, freight_mode,
		       packaging_type, packaging_weight_percent, moq_gbp
		FROM supplier_terms
		ORDER BY supplier_key`

	var terms []domain.SupplierTerms
	if err := r.db.SelectContext(ctx, &terms, query); err != nil {
		return nil, fmt.Errorf("load supplier terms: %w", err)
	}

	for i := range terms {
		terms[i].SupplierKey = domain.NormalizeSupplierKey(terms[i].SupplierKey)
	}
	return terms, nil
}

type curveRow struct {
	ID        int64  `db:"id"`
	Region    string `db:"region"`
	Mode      string `db:"mode"`
	Packaging string `db:"packaging"`
	UseCBM    bool   `db:"use_cbm"`
}

type bandRow struct {
	CurveID int64 `db:"curve_id"`
	domain.RateBand
}

type pointRow struct {
	CurveID int64   `db:"curve_id"`
	X       float64 `db:"x"`
	Y       float64 `db:"y"`
}

// LoadFreightCurves assembles tariff curves from their band and point rows.
func (r *MasterRepository) LoadFreightCurves(ctx context.Context) ([]domain.FreightCurve, error) {
	var curves []curveRow
	if err := r.db.SelectContext(ctx, &curves, `
		SELECT id, region, mode, packaging, use_cbm
		FROM freight_curves
		ORDER BY region, mode, packaging`); err != nil {
		return nil, fmt.Errorf("load freight curves: %w", err)
	}

	var bands []bandRow
	if err := r.db.SelectContext(ctx, &bands, `
		SELECT curve_id, min_kg, max_kg, intercept, slope, base_fuel_surcharge
		FROM freight_rate_bands
		ORDER BY curve_id, min_kg`); err != nil {
		return nil, fmt.Errorf("load freight rate bands: %w", err)
	}

	var points []pointRow
	if err := r.db.SelectContext(ctx, &points, `
		SELECT curve_id, x, y
		FROM freight_curve_points
		ORDER BY curve_id, x`); err != nil {
		return nil, fmt.Errorf("load freight curve points: %w", err)
	}

	bandsByCurve := make(map[int64][]domain.RateBand)
	for _, b := range bands {
		bandsByCurve[b.CurveID] = append(bandsByCurve[b.CurveID], b.RateBand)
	}
	pointsByCurve := make(map[int64][]domain.CurvePoint)
	for _, p := range points {
		pointsByCurve[p.CurveID] = append(pointsByCurve[p.CurveID], domain.CurvePoint{X: p.X, Y: p.Y})
	}

	result := make([]domain.FreightCurve, 0, len(curves))
	for _, c := range curves {
		curve := domain.FreightCurve{
			Region:    c.Region,
			Mode:      c.Mode,
			Packaging: c.Packaging,
			Bands:     bandsByCurve[c.ID],
			Points:    pointsByCurve[c.ID],
			UseCBM:    c.UseCBM,
		}
		sort.Slice(curve.Points, func(i, j int) bool { return curve.Points[i].X < curve.Points[j].X })
		result = append(result, curve)
	}
	return result, nil
}

// LoadFreightConfig returns the generic rate model. There is exactly one
// active row; a missing row falls back to zero rates, which the engine
// treats as "no freight data".
func (r *MasterRepository) LoadFreightConfig(ctx context.Context) (domain.FreightConfig, error) {
	var cfg domain.FreightConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT rate_per_kg, rate_per_cbm, min_charge, box_surcharge,
		       pallet_surcharge, handling_fee, domestic_uk_rate_per_box
		FROM freight_config
		ORDER BY updated_at DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FreightConfig{}, nil
	}
	if err != nil {
		return domain.FreightConfig{}, fmt.Errorf("load freight config: %w", err)
	}
	return cfg, nil
}

// ReplaceSupplierTerms swaps the whole supplier_terms table for the given
// set in a single transaction, normalizing keys on the way in.
func (r *MasterRepository) ReplaceSupplierTerms(ctx context.Context, terms []domain.SupplierTerms) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_terms`); err != nil {
			return fmt.Errorf("clear supplier terms: %w", err)
		}
		for _, t := range terms {
			t.SupplierKey = domain.NormalizeSupplierKey(t.SupplierKey)
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO supplier_terms (supplier_key, supplier_name, country, freight_mode,
				                            packaging_type, packaging_weight_percent, moq_gbp)
				VALUES (:supplier_key, :supplier_name, :country, :freight_mode,
				        :packaging_type, :packaging_weight_percent, :moq_gbp)`, t); err != nil {
				return fmt.Errorf("insert supplier terms %q: %w", t.SupplierKey, err)
			}
		}
		return nil
	})
}

// ReplaceFreightCurves swaps all tariff curves, with their band and point
// rows, in a single transaction.
func (r *MasterRepository) ReplaceFreightCurves(ctx context.Context, curves []domain.FreightCurve) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"freight_curve_points", "freight_rate_bands", "freight_curves"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for _, c := range curves {
			var id int64
			if err := tx.QueryRowxContext(ctx, `
				INSERT INTO freight_curves (region, mode, packaging, use_cbm)
				VALUES ($1, $2, $3, $4)
				RETURNING id`, c.Region, c.Mode, c.Packaging, c.UseCBM).Scan(&id); err != nil {
				return fmt.Errorf("insert freight curve %s/%s/%s: %w", c.Region, c.Mode, c.Packaging, err)
			}

			for _, b := range c.Bands {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO freight_rate_bands (curve_id, min_kg, max_kg, intercept, slope, base_fuel_surcharge)
					VALUES ($1, $2, $3, $4, $5, $6)`,
					id, b.MinKg, b.MaxKg, b.Intercept, b.Slope, b.BaseFuelSurcharge); err != nil {
					return fmt.Errorf("insert rate band for curve %d: %w", id, err)
				}
			}
			for _, p := range c.Points {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO freight_curve_points (curve_id, x, y)
					VALUES ($1, $2, $3)`, id, p.X, p.Y); err != nil {
					return fmt.Errorf("insert curve point for curve %d: %w", id, err)
				}
			}
		}
		return nil
	})
}

// FillRequest populates master-data fields the request left empty. Explicit
// request data always wins so callers can run what-if scenarios.
func (r *MasterRepository) FillRequest(ctx context.Context, req *domain.AllocationRequest) error {
	if len(req.Suppliers) == 0 {
		terms, err := r.LoadSupplierTerms(ctx)
		if err != nil {
			return err
		}
		req.Suppliers = terms
	}

	if len(req.FreightCurves) == 0 {
		curves, err := r.LoadFreightCurves(ctx)
		if err != nil {
			return err
		}
		req.FreightCurves = curves
	}

	if req.FreightConfig == (domain.FreightConfig{}) {
		cfg, err := r.LoadFreightConfig(ctx)
		if err != nil {
			return err
		}
		req.FreightConfig = cfg
	}
	return nil
}
