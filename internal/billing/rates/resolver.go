package rates

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	billing "gas-billing/internal/billing/domain"
	referencedata "gas-billing/internal/referencedata/domain"
)

// DefaultTaxCode is the VAT code applied to gas invoices.
const DefaultTaxCode = "IVA"

// Source is the subset of reference data the resolver reads.
type Source interface {
	GetConversionFactor(ctx context.Context, zone, month string) (*referencedata.ConversionFactor, error)
	ListTariffVersions(ctx context.Context, code string) ([]referencedata.Tariff, error)
	ListTaxVersions(ctx context.Context, code string) ([]referencedata.Tax, error)
}

// Rates is the resolved rate set for one invoice.
type Rates struct {
	Factor referencedata.ConversionFactor
	Tariff referencedata.Tariff
	Tax    referencedata.Tax
}

type cacheEntry struct {
	value any
	err   error
}

// Resolver picks conversion factors, tariffs and taxes for one billing run.
// Version indices are built once per code and shared by all workers.
type Resolver struct {
	source  Source
	taxCode string

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewResolver constructs a run-scoped resolver.
func NewResolver(source Source, taxCode string) (*Resolver, error) {
	if source == nil {
		return nil, errors.New("rate resolver: nil source")
	}
	if taxCode == "" {
		taxCode = DefaultTaxCode
	}
	return &Resolver{
		source:  source,
		taxCode: taxCode,
		cache:   make(map[string]cacheEntry),
	}, nil
}

// Resolve returns the conversion factor of the period month and the tariff
// and tax versions in force on invoiceDate.
func (r *Resolver) Resolve(ctx context.Context, zone, tariffCode string, period billing.Period, invoiceDate time.Time) (Rates, error) {
	factor, err := r.ConversionFactor(ctx, zone, period)
	if err != nil {
		return Rates{}, err
	}
	tariff, err := r.Tariff(ctx, tariffCode, invoiceDate)
	if err != nil {
		return Rates{}, err
	}
	tax, err := r.Tax(ctx, invoiceDate)
	if err != nil {
		return Rates{}, err
	}
	return Rates{Factor: factor, Tariff: tariff, Tax: tax}, nil
}

// ConversionFactor returns the exact (zone, month) factor. There is no
// fallback to another month.
func (r *Resolver) ConversionFactor(ctx context.Context, zone string, period billing.Period) (referencedata.ConversionFactor, error) {
	month := period.String()
	value, err := r.cached("factor:"+zone+"|"+month, func() (any, error) {
		factor, err := r.source.GetConversionFactor(ctx, zone, month)
		if err != nil {
			return nil, billing.NewStoreError("get conversion factor", err)
		}
		if factor == nil {
			return nil, &billing.MissingRateError{Kind: billing.RateKindConversionFactor, Key: "zone " + zone + " month " + month}
		}
		return *factor, nil
	})
	if err != nil {
		return referencedata.ConversionFactor{}, err
	}
	return value.(referencedata.ConversionFactor), nil
}

// Tariff returns the tariff version of code in force on date.
func (r *Resolver) Tariff(ctx context.Context, code string, date time.Time) (referencedata.Tariff, error) {
	value, err := r.cached("tariff:"+code, func() (any, error) {
		versions, err := r.source.ListTariffVersions(ctx, code)
		if err != nil {
			return nil, billing.NewStoreError("list tariff versions", err)
		}
		return NewVersionIndex(billing.RateKindTariff, code, versions)
	})
	if err != nil {
		return referencedata.Tariff{}, err
	}
	return value.(*VersionIndex[referencedata.Tariff]).At(date)
}

// Tax returns the version of the configured tax code in force on date.
func (r *Resolver) Tax(ctx context.Context, date time.Time) (referencedata.Tax, error) {
	value, err := r.cached("tax:"+r.taxCode, func() (any, error) {
		versions, err := r.source.ListTaxVersions(ctx, r.taxCode)
		if err != nil {
			return nil, billing.NewStoreError("list tax versions", err)
		}
		return NewVersionIndex(billing.RateKindTax, r.taxCode, versions)
	})
	if err != nil {
		return referencedata.Tax{}, err
	}
	return value.(*VersionIndex[referencedata.Tax]).At(date)
}

// cached loads key once. Store failures are not cached so later callers retry.
func (r *Resolver) cached(key string, load func() (any, error)) (any, error) {
	r.mu.Lock()
	entry, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return entry.value, entry.err
	}

	value, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.Lock()
		entry, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			return entry.value, entry.err
		}
		value, err := load()
		if err != nil && errors.Is(err, billing.ErrStore) {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = cacheEntry{value: value, err: err}
		r.mu.Unlock()
		return value, err
	})
	return value, err
}
