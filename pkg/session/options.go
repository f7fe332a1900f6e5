package session

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults for session tuning knobs.
const (
	// DefaultDebounceWait is the quiescence window for search keystrokes.
	DefaultDebounceWait = 300 * time.Millisecond

	// DefaultPageSize is the preview page size requested from upstream.
	DefaultPageSize = 25
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDebounceWait overrides the search debounce window.
func WithDebounceWait(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.debounceWait = d
		}
	}
}

// WithPageSize overrides the preview page size.
func WithPageSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}
