package driver

import "time"

// AuthConfig carries the credentials the driver uses for in-channel auth
// (SystemSSH, Telnet) and privilege escalation. Library-level SSH auth
// (NativeSSH) takes its credentials from transport.Options, not from here.
type AuthConfig struct {
	Username             string
	Password             string
	PrivateKeyPath       string
	PrivateKeyPassphrase string

	// SecondaryPassword answers an escalate_auth privilege-level challenge
	// (e.g. "enable" then a password prompt).
	SecondaryPassword string

	StrictKeyChecking   bool
	BypassInChannelAuth bool
}

// TimeoutsConfig holds the three timeout values of a session. The driver
// applies only TimeoutOps; TimeoutSocket and TimeoutTransport are not
// passed to the transport, which takes its own values from
// transport.Options.
type TimeoutsConfig struct {
	// TimeoutSocket is the initial-connect timeout.
	TimeoutSocket time.Duration
	// TimeoutTransport is the per-read deadline.
	TimeoutTransport time.Duration
	// TimeoutOps bounds a whole driver operation (send_command and
	// friends); overridable per call.
	TimeoutOps time.Duration
}

// DefaultTimeouts mirrors the values a scraping client needs against a
// typically-slow network device console: ten seconds to establish the
// session, ten seconds per read, and a generous whole-operation cap.
func DefaultTimeouts() TimeoutsConfig {
	return TimeoutsConfig{
		TimeoutSocket:    10 * time.Second,
		TimeoutTransport: 10 * time.Second,
		TimeoutOps:       30 * time.Second,
	}
}
