package referencedata

import "errors"

// SupplyPointStatus is the contract state of a supply point.
type SupplyPointStatus string

const (
	StatusActive   SupplyPointStatus = "ACTIVE"
	StatusInactive SupplyPointStatus = "INACTIVE"
)

// SupplyPoint is a gas connection point identified by its CUPS.
type SupplyPoint struct {
	CUPS       string            `json:"cups"`
	Zone       string            `json:"zone"`
	TariffCode string            `json:"tariffCode"`
	Status     SupplyPointStatus `json:"status"`
}

// IsActive reports whether the point takes part in billing runs.
func (s SupplyPoint) IsActive() bool { return s.Status == StatusActive }

// Validate checks supply point invariants.
func (s SupplyPoint) Validate() error {
	if s.CUPS == "" {
		return errors.New("supply point: empty cups")
	}
	if s.Zone == "" {
		return errors.New("supply point: empty zone")
	}
	if s.TariffCode == "" {
		return errors.New("supply point: empty tariff code")
	}
	switch s.Status {
	case StatusActive, StatusInactive:
	default:
		return errors.New("supply point: invalid status")
	}
	return nil
}
