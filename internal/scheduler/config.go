package scheduler

import "time"

// Config tunes the scheduler loop's timing policies, per spec §4.4 and
// §5.
type Config struct {
	// PollInterval is how often the loop re-evaluates pending work even
	// absent a triggering event (submit, cancel, completion).
	PollInterval time.Duration

	// PendingWarnAfter is how long a unit may sit PENDING before
	// on_stall_warning fires once for it. Zero disables the warning.
	PendingWarnAfter time.Duration

	// PendingTimeout is how long a unit may sit PENDING before it is
	// failed outright with a pending-timeout error. Zero disables the
	// check.
	PendingTimeout time.Duration

	// StallWarnAfter is how long the coordinator may go with no
	// terminal transition anywhere, while pending work exists, before
	// on_stall_warning fires once per threshold crossing. Zero disables
	// the warning.
	StallWarnAfter time.Duration

	// StallTimeout is how long the coordinator may go with no terminal
	// transition anywhere before every pending unit is failed with a
	// stall error. Zero disables the check.
	StallTimeout time.Duration

	// MaxRetryBackoff caps the exponential backoff applied between a
	// failed attempt and its retry respin.
	MaxRetryBackoff time.Duration
}

// DefaultConfig returns the timing policy used when the coordinator is
// not given an explicit one.
func DefaultConfig() Config {
	return Config{
		PollInterval:     100 * time.Millisecond,
		PendingWarnAfter: 15 * time.Second,
		PendingTimeout:   30 * time.Second,
		StallWarnAfter:   30 * time.Second,
		StallTimeout:     60 * time.Second,
		MaxRetryBackoff:  30 * time.Second,
	}
}
