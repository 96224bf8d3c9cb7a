package channel

import "errors"

var (
	// ErrAuthFailed is returned by AuthenticateTelnet/AuthenticateSSH when a
	// failure banner is read, or when authentication does not complete
	// before the operation timeout.
	ErrAuthFailed = errors.New("channel: authentication failed")

	// ErrPromptTimeout is returned when a prompt-match loop exceeds its
	// deadline without finding the expected pattern. The caller (driver
	// layer) is responsible for closing the transport on this error, since
	// the channel's read cursor may be mid-reply and cannot be safely
	// reused.
	ErrPromptTimeout = errors.New("channel: timeout waiting for prompt")
)
