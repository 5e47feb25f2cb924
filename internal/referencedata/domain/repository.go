package referencedata

import "context"

// Reader is the read contract the billing engine consumes.
type Reader interface {
	ListSupplyPoints(ctx context.Context) ([]SupplyPoint, error)
	// ListReadings returns readings ordered by date ascending.
	ListReadings(ctx context.Context, cups string) ([]Reading, error)
	// GetConversionFactor returns nil, nil when no factor exists.
	GetConversionFactor(ctx context.Context, zone, month string) (*ConversionFactor, error)
	ListTariffVersions(ctx context.Context, code string) ([]Tariff, error)
	ListTaxVersions(ctx context.Context, code string) ([]Tax, error)
}

// Writer upserts reference data. Only the seeder writes.
type Writer interface {
	SaveSupplyPoint(ctx context.Context, point SupplyPoint) error
	SaveReading(ctx context.Context, reading Reading) error
	SaveConversionFactor(ctx context.Context, factor ConversionFactor) error
	SaveTariff(ctx context.Context, tariff Tariff) error
	SaveTax(ctx context.Context, tax Tax) error
}

// Store reads and writes reference data.
type Store interface {
	Reader
	Writer
}
