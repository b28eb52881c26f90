package server

import (
	"time"

	"github.com/bearlytools/xrtipc/internal/logging"
	"github.com/bearlytools/xrtipc/internal/metrics"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to a logger that discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics sets the metrics instruments. Defaults to instruments on a noop provider.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithPollInterval bounds how long a session loop waits for a request before checking for
// shutdown. Defaults to 500ms.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithExitOnDisconnect stops the server once any client disconnects.
func WithExitOnDisconnect(exit bool) Option {
	return func(s *Server) {
		s.exitOnDisconnect = exit
	}
}
