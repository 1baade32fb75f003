package core

import "time"

// Options tunes the transactional services. Zero values fall back to the defaults below.
type Options struct {
	// LockTimeout bounds how long a transaction waits for a locked row.
	LockTimeout time.Duration
	// MaxValidationAttempts caps how many times a validation is attempted after concurrency conflicts.
	MaxValidationAttempts int
	// ReservationTTL is the lifetime of a reservation created without an explicit expiry.
	ReservationTTL time.Duration
	// Now is the clock used for expiry decisions. Defaults to time.Now.
	Now func() time.Time
	// OnValidationRetry, if set, is called before each retry of a conflicted validation.
	OnValidationRetry func(err error, wait time.Duration)
}

const (
	DefaultLockTimeout           = 5 * time.Second
	DefaultMaxValidationAttempts = 4
)

func (o Options) withDefaults() Options {
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	if o.MaxValidationAttempts <= 0 {
		o.MaxValidationAttempts = DefaultMaxValidationAttempts
	}
	if o.ReservationTTL <= 0 {
		o.ReservationTTL = DefaultReservationTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
