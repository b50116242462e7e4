// Package limiter throttles sign-in attempts per identifier and client.
package limiter

import (
	"context"
	"time"
)

// Limiter controls sign-in attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether sign-in is currently allowed and optional retry-after.
	Allow(ctx context.Context, identifier string, clientHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful sign-in.
	Success(ctx context.Context, identifier string, clientHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, identifier string, clientHash []byte) (bool, time.Duration, error)
}

// Policy configures the lockout window.
type Policy struct {
	// Window resets the failure counter when the previous attempt is older.
	Window time.Duration
	// MaxFails is the failure count that triggers a block.
	MaxFails int
	// BlockFor is the lockout duration.
	BlockFor time.Duration
}

// DefaultPolicy blocks for 15 minutes after 5 failures within 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}
