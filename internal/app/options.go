package app

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCrossDuration is how long a started cross runs.
const DefaultCrossDuration = 20 * time.Minute

// Option tunes a service.
type Option func(*settings)

type settings struct {
	now           func() time.Time
	crossDuration time.Duration
	scoring       Scoring
	logger        *slog.Logger
	passwordCost  int
	tokenTTL      time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{
		now:           time.Now,
		crossDuration: DefaultCrossDuration,
		scoring:       DefaultScoring,
		logger:        slog.Default(),
		passwordCost:  bcrypt.DefaultCost,
		tokenTTL:      24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithClock is mostly useful for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCrossDuration sets how long a cross runs once started.
func WithCrossDuration(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.crossDuration = d
		}
	}
}

// WithScoring overrides the penalty weights.
func WithScoring(sc Scoring) Option {
	return func(s *settings) {
		s.scoring = sc
	}
}

// WithLogger sets the logger services report through. Nil keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) Option {
	return func(s *settings) {
		s.passwordCost = cost
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}
