package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrFilteredType) {
//	    // hubs and sirens are expected; skip quietly
//	}
var (
	// ErrInvalidDeviceType is returned when a record's type is not one of
	// the supported sensor kinds.
	ErrInvalidDeviceType = errors.New("device: unsupported type")

	// ErrFilteredType is returned for hub and siren records, which carry
	// no sensor reports and are excluded from the registry.
	ErrFilteredType = errors.New("device: filtered type")

	// ErrInvalidRecord is returned when a record has no device id.
	ErrInvalidRecord = errors.New("device: invalid record")

	// ErrSinkWrite is returned from Process when an attached sink fails.
	ErrSinkWrite = errors.New("device: sink write failed")

	// ErrCatalogEmpty is returned when no device catalog has been cached.
	ErrCatalogEmpty = errors.New("device: catalog is empty")
)
