package config

import "time"

// PendingConfig controls the store holding bookings between the redirect to
// the provider and the return.  Entries are keyed by buy order, so TTL only
// bounds abandoned checkouts.
type PendingConfig struct {
	Prefix string
	TTL    time.Duration
}

// LoadPendingConfig reads PENDING_* variables.
func LoadPendingConfig() PendingConfig {
	return PendingConfig{
		Prefix: envStr("PENDING_PREFIX", "pending_booking"),
		TTL:    envDur("PENDING_TTL", 24*time.Hour),
	}
}
