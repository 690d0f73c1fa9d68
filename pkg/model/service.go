package model

import "time"

// ServiceSpec is the declared, immutable-after-registration
// configuration for a named admission bucket. Live usage counters are
// not part of this type; they live in package service, which wraps a
// ServiceSpec with the mutable state spec §3 describes.
type ServiceSpec struct {
	Name string

	// Concurrent is the maximum number of simultaneously RUNNING work
	// units bound to this service. 0 means unbounded.
	Concurrent int

	// RateCount and RateWindow together define the sliding-window rate
	// limit: at most RateCount dispatches in any RateWindow-long
	// interval. A zero RateWindow means no rate check.
	RateCount  int
	RateWindow time.Duration
}

// Equal reports whether two specs describe identical limits, used by
// RegisterService to allow idempotent re-registration.
func (s ServiceSpec) Equal(other ServiceSpec) bool {
	return s.Name == other.Name &&
		s.Concurrent == other.Concurrent &&
		s.RateCount == other.RateCount &&
		s.RateWindow == other.RateWindow
}
