package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	referencedata "gas-billing/internal/referencedata/domain"
)

// Sample file names, loaded in dependency order.
const (
	SupplyPointsFile      = "supply-points.csv"
	TariffsFile           = "gas-tariffs.csv"
	ConversionFactorsFile = "gas-conversion-factors.csv"
	TaxesFile             = "taxes.csv"
	ReadingsFile          = "gas-readings.csv"
)

const dateLayout = "2006-01-02"

// Summary counts rows written per file.
type Summary map[string]int

// Loader upserts CSV reference data. Re-loading the same files is idempotent.
type Loader struct {
	writer referencedata.Writer
	logger *zap.Logger
}

// NewLoader constructs a loader.
func NewLoader(writer referencedata.Writer, logger *zap.Logger) (*Loader, error) {
	if writer == nil {
		return nil, errors.New("seed loader: nil writer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{writer: writer, logger: logger}, nil
}

// LoadDir loads every known file found in dir. Missing files are skipped.
// A malformed file is rejected before any of its rows are written.
func (l *Loader) LoadDir(ctx context.Context, dir string) (Summary, error) {
	steps := []struct {
		file string
		load func(context.Context, io.Reader) (int, error)
	}{
		{SupplyPointsFile, l.LoadSupplyPoints},
		{TariffsFile, l.LoadTariffs},
		{ConversionFactorsFile, l.LoadConversionFactors},
		{TaxesFile, l.LoadTaxes},
		{ReadingsFile, l.LoadReadings},
	}

	summary := make(Summary, len(steps))
	for _, step := range steps {
		path := filepath.Join(dir, step.file)
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.logger.Warn("seed file not found, skipping", zap.String("path", path))
				continue
			}
			return summary, err
		}
		count, err := step.load(ctx, f)
		_ = f.Close()
		if err != nil {
			return summary, fmt.Errorf("%s: %w", step.file, err)
		}
		summary[step.file] = count
		l.logger.Info("seed file loaded", zap.String("file", step.file), zap.Int("rows", count))
	}
	return summary, nil
}

// LoadSupplyPoints reads cups,zona,tarifa,estado rows.
func (l *Loader) LoadSupplyPoints(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readRows(r, 4)
	if err != nil {
		return 0, err
	}
	points := make([]referencedata.SupplyPoint, 0, len(rows))
	var errs error
	for _, row := range rows {
		point := referencedata.SupplyPoint{
			CUPS:       row.cells[0],
			Zone:       row.cells[1],
			TariffCode: row.cells[2],
			Status:     parseStatus(row.cells[3]),
		}
		if err := point.Validate(); err != nil {
			errs = multierr.Append(errs, row.wrap(err))
			continue
		}
		points = append(points, point)
	}
	if errs != nil {
		return 0, errs
	}
	for _, point := range points {
		if err := l.writer.SaveSupplyPoint(ctx, point); err != nil {
			return 0, err
		}
	}
	return len(points), nil
}

// LoadTariffs reads tarifa,fijo_mes_eur,variable_eur_kwh,vigencia_desde rows.
func (l *Loader) LoadTariffs(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readRows(r, 4)
	if err != nil {
		return 0, err
	}
	tariffs := make([]referencedata.Tariff, 0, len(rows))
	var errs error
	for _, row := range rows {
		fixed, err1 := row.decimal(1, "fijo_mes_eur")
		variable, err2 := row.decimal(2, "variable_eur_kwh")
		from, err3 := row.date(3, "vigencia_desde")
		if err := multierr.Combine(err1, err2, err3); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		tariff := referencedata.Tariff{
			Code:               row.cells[0],
			FixedTermPerMonth:  fixed,
			VariableTermPerKWh: variable,
			EffectiveFrom:      from,
		}
		if err := tariff.Validate(); err != nil {
			errs = multierr.Append(errs, row.wrap(err))
			continue
		}
		tariffs = append(tariffs, tariff)
	}
	if errs != nil {
		return 0, errs
	}
	for _, tariff := range tariffs {
		if err := l.writer.SaveTariff(ctx, tariff); err != nil {
			return 0, err
		}
	}
	return len(tariffs), nil
}

// LoadConversionFactors reads zona,mes,coef_conv,pcs_kwh_m3 rows.
func (l *Loader) LoadConversionFactors(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readRows(r, 4)
	if err != nil {
		return 0, err
	}
	factors := make([]referencedata.ConversionFactor, 0, len(rows))
	var errs error
	for _, row := range rows {
		coefficient, err1 := row.decimal(2, "coef_conv")
		pcs, err2 := row.decimal(3, "pcs_kwh_m3")
		if err := multierr.Combine(err1, err2); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		factor := referencedata.ConversionFactor{
			Zone:        row.cells[0],
			Month:       row.cells[1],
			Coefficient: coefficient,
			PCS:         pcs,
		}
		if err := factor.Validate(); err != nil {
			errs = multierr.Append(errs, row.wrap(err))
			continue
		}
		factors = append(factors, factor)
	}
	if errs != nil {
		return 0, errs
	}
	for _, factor := range factors {
		if err := l.writer.SaveConversionFactor(ctx, factor); err != nil {
			return 0, err
		}
	}
	return len(factors), nil
}

// LoadTaxes reads taxCode,taxRate,vigencia_desde rows.
func (l *Loader) LoadTaxes(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readRows(r, 3)
	if err != nil {
		return 0, err
	}
	taxes := make([]referencedata.Tax, 0, len(rows))
	var errs error
	for _, row := range rows {
		rate, err1 := row.decimal(1, "taxRate")
		from, err2 := row.date(2, "vigencia_desde")
		if err := multierr.Combine(err1, err2); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		tax := referencedata.Tax{Code: row.cells[0], Rate: rate, EffectiveFrom: from}
		if err := tax.Validate(); err != nil {
			errs = multierr.Append(errs, row.wrap(err))
			continue
		}
		taxes = append(taxes, tax)
	}
	if errs != nil {
		return 0, errs
	}
	for _, tax := range taxes {
		if err := l.writer.SaveTax(ctx, tax); err != nil {
			return 0, err
		}
	}
	return len(taxes), nil
}

// LoadReadings reads cups,fecha,lectura_m3,tipo rows.
func (l *Loader) LoadReadings(ctx context.Context, r io.Reader) (int, error) {
	rows, err := readRows(r, 4)
	if err != nil {
		return 0, err
	}
	readings := make([]referencedata.Reading, 0, len(rows))
	var errs error
	for _, row := range rows {
		date, err1 := row.date(1, "fecha")
		volume, err2 := row.decimal(2, "lectura_m3")
		if err := multierr.Combine(err1, err2); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		reading := referencedata.Reading{
			CUPS:     row.cells[0],
			Date:     date,
			VolumeM3: volume,
			Kind:     parseReadingKind(row.cells[3]),
		}
		if err := reading.Validate(); err != nil {
			errs = multierr.Append(errs, row.wrap(err))
			continue
		}
		readings = append(readings, reading)
	}
	if errs != nil {
		return 0, errs
	}
	for _, reading := range readings {
		if err := l.writer.SaveReading(ctx, reading); err != nil {
			return 0, err
		}
	}
	return len(readings), nil
}

// Legacy exports spell enum values in Spanish.
var (
	statusAliases = map[string]referencedata.SupplyPointStatus{
		"ACTIVO":   referencedata.StatusActive,
		"INACTIVO": referencedata.StatusInactive,
	}
	readingKindAliases = map[string]referencedata.ReadingKind{
		"REAL":     referencedata.ReadingActual,
		"ESTIMADA": referencedata.ReadingEstimated,
	}
)

func parseStatus(value string) referencedata.SupplyPointStatus {
	value = strings.ToUpper(value)
	if status, ok := statusAliases[value]; ok {
		return status
	}
	return referencedata.SupplyPointStatus(value)
}

func parseReadingKind(value string) referencedata.ReadingKind {
	value = strings.ToUpper(value)
	if kind, ok := readingKindAliases[value]; ok {
		return kind
	}
	return referencedata.ReadingKind(value)
}

type csvRow struct {
	line  int
	cells []string
}

func (r csvRow) wrap(err error) error {
	return fmt.Errorf("line %d: %w", r.line, err)
}

func (r csvRow) decimal(idx int, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(r.cells[idx])
	if err != nil {
		return decimal.Zero, fmt.Errorf("line %d: invalid decimal for %s: %q", r.line, field, r.cells[idx])
	}
	return value, nil
}

func (r csvRow) date(idx int, field string) (time.Time, error) {
	value, err := time.Parse(dateLayout, r.cells[idx])
	if err != nil {
		return time.Time{}, fmt.Errorf("line %d: invalid date (expected YYYY-MM-DD) for %s: %q", r.line, field, r.cells[idx])
	}
	return value, nil
}

// readRows skips the header and returns trimmed rows with at least columns cells.
func readRows(r io.Reader, columns int) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, err
	}

	var (
		rows []csvRow
		errs error
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < columns {
			errs = multierr.Append(errs, fmt.Errorf("line %d: expected %d columns, got %d", line, columns, len(record)))
			continue
		}
		cells := make([]string, len(record))
		blank := false
		for i, cell := range record {
			cells[i] = strings.TrimSpace(cell)
			if i < columns && cells[i] == "" {
				blank = true
			}
		}
		if blank {
			errs = multierr.Append(errs, fmt.Errorf("line %d: blank column", line))
			continue
		}
		rows = append(rows, csvRow{line: line, cells: cells})
	}
	if errs != nil {
		return nil, errs
	}
	return rows, nil
}
