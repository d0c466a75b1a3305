package volume

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderUnresolved means the order was placed but the provider never
	// surfaced the provisioned resource id within the polling budget. The
	// order is not rolled back, the disk may still materialize out of
	// band.
	ErrOrderUnresolved = errors.New("portable storage order delayed")

	// ErrNoMatchingCapacity means no priced capacity tier satisfied the
	// request.
	ErrNoMatchingCapacity = errors.New("no volume with matching capacity")

	// ErrNoMatchingLocation means neither the requested zone nor the
	// default zone exists in the provider's datacenter table.
	ErrNoMatchingLocation = errors.New("no matching location")
)

// ValidationError rejects malformed or unsatisfiable caller input before any
// billable action happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError means the id was well-formed but the resource is absent
// upstream.
type NotFoundError struct {
	ID      int
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("volume %d not found", e.ID)
}
