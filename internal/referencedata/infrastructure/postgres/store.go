package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	referencedata "gas-billing/internal/referencedata/domain"
)

const (
	defaultSupplyPointsTable = "supply_points"
	defaultReadingsTable     = "gas_readings"
	defaultFactorsTable      = "gas_conversion_factors"
	defaultTariffsTable      = "gas_tariffs"
	defaultTaxesTable        = "gas_taxes"
)

// Tables names the reference data tables.
type Tables struct {
	SupplyPoints string
	Readings     string
	Factors      string
	Tariffs      string
	Taxes        string
}

// Store is a Postgres implementation of the reference data reader and writer.
type Store struct {
	db     DBTX
	tables Tables
}

// NewStore constructs a store.
func NewStore(db DBTX, opts ...StoreOption) *Store {
	store := &Store{
		db: db,
		tables: Tables{
			SupplyPoints: defaultSupplyPointsTable,
			Readings:     defaultReadingsTable,
			Factors:      defaultFactorsTable,
			Tariffs:      defaultTariffsTable,
			Taxes:        defaultTaxesTable,
		},
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithTables overrides table names; empty fields keep the default.
func WithTables(tables Tables) StoreOption {
	return func(store *Store) {
		if tables.SupplyPoints != "" {
			store.tables.SupplyPoints = tables.SupplyPoints
		}
		if tables.Readings != "" {
			store.tables.Readings = tables.Readings
		}
		if tables.Factors != "" {
			store.tables.Factors = tables.Factors
		}
		if tables.Tariffs != "" {
			store.tables.Tariffs = tables.Tariffs
		}
		if tables.Taxes != "" {
			store.tables.Taxes = tables.Taxes
		}
	}
}

// ListSupplyPoints returns every supply point ordered by CUPS.
func (s *Store) ListSupplyPoints(ctx context.Context) ([]referencedata.SupplyPoint, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference store: nil db")
	}
	query := fmt.Sprintf(`
SELECT cups, zone, tariff_code, status
FROM %s
ORDER BY cups ASC`, s.tables.SupplyPoints)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []referencedata.SupplyPoint
	for rows.Next() {
		var (
			point  referencedata.SupplyPoint
			status string
		)
		if err := rows.Scan(&point.CUPS, &point.Zone, &point.TariffCode, &status); err != nil {
			return nil, err
		}
		point.Status = referencedata.SupplyPointStatus(status)
		result = append(result, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListReadings returns the readings of a supply point by date ascending.
func (s *Store) ListReadings(ctx context.Context, cups string) ([]referencedata.Reading, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference store: nil db")
	}
	query := fmt.Sprintf(`
SELECT cups, reading_date, volume_m3, kind
FROM %s
WHERE cups = $1
ORDER BY reading_date ASC`, s.tables.Readings)

	rows, err := s.db.QueryContext(ctx, query, cups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []referencedata.Reading
	for rows.Next() {
		var (
			reading referencedata.Reading
			kind    string
		)
		if err := rows.Scan(&reading.CUPS, &reading.Date, &reading.VolumeM3, &kind); err != nil {
			return nil, err
		}
		reading.Date = dateOnly(reading.Date)
		reading.Kind = referencedata.ReadingKind(kind)
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetConversionFactor returns nil when no factor exists for zone and month.
func (s *Store) GetConversionFactor(ctx context.Context, zone, month string) (*referencedata.ConversionFactor, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference store: nil db")
	}
	query := fmt.Sprintf(`
SELECT zone, month, coefficient, pcs_kwh_m3
FROM %s
WHERE zone = $1 AND month = $2
LIMIT 1`, s.tables.Factors)

	var factor referencedata.ConversionFactor
	if err := s.db.QueryRowContext(ctx, query, zone, month).Scan(
		&factor.Zone,
		&factor.Month,
		&factor.Coefficient,
		&factor.PCS,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &factor, nil
}

// ListTariffVersions returns every version of a tariff code.
func (s *Store) ListTariffVersions(ctx context.Context, code string) ([]referencedata.Tariff, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference store: nil db")
	}
	query := fmt.Sprintf(`
SELECT code, fixed_term_eur_month, variable_term_eur_kwh, effective_from
FROM %s
WHERE code = $1
ORDER BY effective_from ASC`, s.tables.Tariffs)

	rows, err := s.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []referencedata.Tariff
	for rows.Next() {
		var tariff referencedata.Tariff
		if err := rows.Scan(&tariff.Code, &tariff.FixedTermPerMonth, &tariff.VariableTermPerKWh, &tariff.EffectiveFrom); err != nil {
			return nil, err
		}
		tariff.EffectiveFrom = dateOnly(tariff.EffectiveFrom)
		result = append(result, tariff)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListTaxVersions returns every version of a tax code.
func (s *Store) ListTaxVersions(ctx context.Context, code string) ([]referencedata.Tax, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reference store: nil db")
	}
	query := fmt.Sprintf(`
SELECT code, rate, effective_from
FROM %s
WHERE code = $1
ORDER BY effective_from ASC`, s.tables.Taxes)

	rows, err := s.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []referencedata.Tax
	for rows.Next() {
		var tax referencedata.Tax
		if err := rows.Scan(&tax.Code, &tax.Rate, &tax.EffectiveFrom); err != nil {
			return nil, err
		}
		tax.EffectiveFrom = dateOnly(tax.EffectiveFrom)
		result = append(result, tax)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveSupplyPoint upserts a supply point.
func (s *Store) SaveSupplyPoint(ctx context.Context, point referencedata.SupplyPoint) error {
	if s == nil || s.db == nil {
		return errors.New("reference store: nil db")
	}
	if err := point.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (cups, zone, tariff_code, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cups)
DO UPDATE SET
	zone = EXCLUDED.zone,
	tariff_code = EXCLUDED.tariff_code,
	status = EXCLUDED.status,
	updated_at = NOW()`, s.tables.SupplyPoints)
	_, err := s.db.ExecContext(ctx, query, point.CUPS, point.Zone, point.TariffCode, string(point.Status))
	return err
}

// SaveReading upserts a reading by CUPS and date.
func (s *Store) SaveReading(ctx context.Context, reading referencedata.Reading) error {
	if s == nil || s.db == nil {
		return errors.New("reference store: nil db")
	}
	if err := reading.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (cups, reading_date, volume_m3, kind)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cups, reading_date)
DO UPDATE SET
	volume_m3 = EXCLUDED.volume_m3,
	kind = EXCLUDED.kind`, s.tables.Readings)
	_, err := s.db.ExecContext(ctx, query, reading.CUPS, dateOnly(reading.Date), reading.VolumeM3, string(reading.Kind))
	return err
}

// SaveConversionFactor upserts a factor by zone and month.
func (s *Store) SaveConversionFactor(ctx context.Context, factor referencedata.ConversionFactor) error {
	if s == nil || s.db == nil {
		return errors.New("reference store: nil db")
	}
	if err := factor.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (zone, month, coefficient, pcs_kwh_m3)
VALUES ($1, $2, $3, $4)
ON CONFLICT (zone, month)
DO UPDATE SET
	coefficient = EXCLUDED.coefficient,
	pcs_kwh_m3 = EXCLUDED.pcs_kwh_m3`, s.tables.Factors)
	_, err := s.db.ExecContext(ctx, query, factor.Zone, factor.Month, factor.Coefficient, factor.PCS)
	return err
}

// SaveTariff upserts a tariff version.
func (s *Store) SaveTariff(ctx context.Context, tariff referencedata.Tariff) error {
	if s == nil || s.db == nil {
		return errors.New("reference store: nil db")
	}
	if err := tariff.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (code, fixed_term_eur_month, variable_term_eur_kwh, effective_from)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code, effective_from)
DO UPDATE SET
	fixed_term_eur_month = EXCLUDED.fixed_term_eur_month,
	variable_term_eur_kwh = EXCLUDED.variable_term_eur_kwh`, s.tables.Tariffs)
	_, err := s.db.ExecContext(ctx, query, tariff.Code, tariff.FixedTermPerMonth, tariff.VariableTermPerKWh, dateOnly(tariff.EffectiveFrom))
	return err
}

// SaveTax upserts a tax version.
func (s *Store) SaveTax(ctx context.Context, tax referencedata.Tax) error {
	if s == nil || s.db == nil {
		return errors.New("reference store: nil db")
	}
	if err := tax.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (code, rate, effective_from)
VALUES ($1, $2, $3)
ON CONFLICT (code, effective_from)
DO UPDATE SET rate = EXCLUDED.rate`, s.tables.Taxes)
	_, err := s.db.ExecContext(ctx, query, tax.Code, tax.Rate, dateOnly(tax.EffectiveFrom))
	return err
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
