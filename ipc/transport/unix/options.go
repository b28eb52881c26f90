package unix

import "time"

// config holds configuration for the unix socket acceptor.
type config struct {
	// How long AcceptNext waits before reporting it would block.
	pollInterval time.Duration

	// File mode for the socket file.
	// Default is 0600 (owner read/write only).
	socketMode uint32

	// Whether to unlink (remove) existing socket file before listening.
	// Default is true.
	unlinkExisting bool

	// Whether to take the listening socket from systemd when one was passed.
	// Default is true.
	systemd bool
}

func defaultConfig() *config {
	return &config{
		pollInterval:   500 * time.Millisecond,
		socketMode:     0600,
		unlinkExisting: true,
		systemd:        true,
	}
}

// Option configures a unix socket acceptor.
type Option func(*config)

// WithPollInterval sets how long AcceptNext waits for a connection.
// Default is 500ms.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSocketMode sets the file mode for the socket file. Default is 0600.
func WithSocketMode(mode uint32) Option {
	return func(c *config) {
		c.socketMode = mode
	}
}

// WithUnlinkExisting controls whether to remove an existing socket file
// before listening. Default is true.
func WithUnlinkExisting(unlink bool) Option {
	return func(c *config) {
		c.unlinkExisting = unlink
	}
}

// WithSystemd controls whether a socket passed by systemd socket activation is used
// instead of creating one. Default is true.
func WithSystemd(use bool) Option {
	return func(c *config) {
		c.systemd = use
	}
}
