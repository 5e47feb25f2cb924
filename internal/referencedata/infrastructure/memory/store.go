package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	referencedata "gas-billing/internal/referencedata/domain"
)

// Store is an in-memory reference data store for demo/testing.
// It implements both Reader and Writer.
type Store struct {
	mu       sync.RWMutex
	points   map[string]referencedata.SupplyPoint
	readings map[string]map[time.Time]referencedata.Reading
	factors  map[string]referencedata.ConversionFactor
	tariffs  map[string]map[time.Time]referencedata.Tariff
	taxes    map[string]map[time.Time]referencedata.Tax
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		points:   make(map[string]referencedata.SupplyPoint),
		readings: make(map[string]map[time.Time]referencedata.Reading),
		factors:  make(map[string]referencedata.ConversionFactor),
		tariffs:  make(map[string]map[time.Time]referencedata.Tariff),
		taxes:    make(map[string]map[time.Time]referencedata.Tax),
	}
}

// ListSupplyPoints returns every supply point ordered by CUPS.
func (s *Store) ListSupplyPoints(ctx context.Context) ([]referencedata.SupplyPoint, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]referencedata.SupplyPoint, 0, len(s.points))
	for _, point := range s.points {
		points = append(points, point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].CUPS < points[j].CUPS })
	return points, nil
}

// ListReadings returns the readings of a supply point by date ascending.
func (s *Store) ListReadings(ctx context.Context, cups string) ([]referencedata.Reading, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := s.readings[cups]
	readings := make([]referencedata.Reading, 0, len(byDate))
	for _, reading := range byDate {
		readings = append(readings, reading)
	}
	referencedata.SortReadings(readings)
	return readings, nil
}

// GetConversionFactor returns nil when no factor exists for zone and month.
func (s *Store) GetConversionFactor(ctx context.Context, zone, month string) (*referencedata.ConversionFactor, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	factor, ok := s.factors[factorKey(zone, month)]
	if !ok {
		return nil, nil
	}
	return &factor, nil
}

// ListTariffVersions returns every version of a tariff code.
func (s *Store) ListTariffVersions(ctx context.Context, code string) ([]referencedata.Tariff, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make([]referencedata.Tariff, 0, len(s.tariffs[code]))
	for _, tariff := range s.tariffs[code] {
		versions = append(versions, tariff)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].EffectiveFrom.Before(versions[j].EffectiveFrom) })
	return versions, nil
}

// ListTaxVersions returns every version of a tax code.
func (s *Store) ListTaxVersions(ctx context.Context, code string) ([]referencedata.Tax, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make([]referencedata.Tax, 0, len(s.taxes[code]))
	for _, tax := range s.taxes[code] {
		versions = append(versions, tax)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].EffectiveFrom.Before(versions[j].EffectiveFrom) })
	return versions, nil
}

// SaveSupplyPoint upserts a supply point by CUPS.
func (s *Store) SaveSupplyPoint(ctx context.Context, point referencedata.SupplyPoint) error {
	_ = ctx
	if err := point.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[point.CUPS] = point
	return nil
}

// SaveReading upserts a reading by CUPS and date.
func (s *Store) SaveReading(ctx context.Context, reading referencedata.Reading) error {
	_ = ctx
	if err := reading.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := s.readings[reading.CUPS]
	if byDate == nil {
		byDate = make(map[time.Time]referencedata.Reading)
		s.readings[reading.CUPS] = byDate
	}
	byDate[dateKey(reading.Date)] = reading
	return nil
}

// SaveConversionFactor upserts a factor by zone and month.
func (s *Store) SaveConversionFactor(ctx context.Context, factor referencedata.ConversionFactor) error {
	_ = ctx
	if err := factor.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factors[factorKey(factor.Zone, factor.Month)] = factor
	return nil
}

// SaveTariff upserts a tariff version by code and effective date.
func (s *Store) SaveTariff(ctx context.Context, tariff referencedata.Tariff) error {
	_ = ctx
	if err := tariff.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.tariffs[tariff.Code]
	if versions == nil {
		versions = make(map[time.Time]referencedata.Tariff)
		s.tariffs[tariff.Code] = versions
	}
	versions[dateKey(tariff.EffectiveFrom)] = tariff
	return nil
}

// SaveTax upserts a tax version by code and effective date.
func (s *Store) SaveTax(ctx context.Context, tax referencedata.Tax) error {
	_ = ctx
	if err := tax.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.taxes[tax.Code]
	if versions == nil {
		versions = make(map[time.Time]referencedata.Tax)
		s.taxes[tax.Code] = versions
	}
	versions[dateKey(tax.EffectiveFrom)] = tax
	return nil
}

func factorKey(zone, month string) string {
	return zone + "|" + month
}

func dateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
