// Package services contains the server-side business logic: ceremony
// challenges and verification, sessions, password login and passkey
// management. Services are transport-agnostic; they take and return domain
// models and report failures with the sentinels in internal/common.
package services

import (
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/logging"
	"github.com/dmitrijs2005/hotelauth/internal/timex"
)

// Option configures the ambient dependencies shared by every service.
type Option func(*base)

type base struct {
	log   logging.Logger
	clock timex.Clock
}

func newBase(module string, opts []Option) base {
	b := base{log: logging.Nop()}
	for _, o := range opts {
		o(&b)
	}
	b.log = b.log.With("module", module)
	return b
}

func (b base) now() time.Time {
	return b.clock.Now()
}

// WithLogger sets the logger; the service adds its own module attribute.
func WithLogger(l logging.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

// WithClock replaces the wall clock, mostly for expiry tests.
func WithClock(c timex.Clock) Option {
	return func(b *base) { b.clock = c }
}
