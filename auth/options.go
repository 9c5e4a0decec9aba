package auth

import "time"

// Option configures the code store and the token issuer.
type Option func(*options)

type options struct {
	now     func() time.Time
	metrics *Metrics
}

// WithClock replaces time.Now as the source of issuance and expiry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics records issuance and lookup outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
