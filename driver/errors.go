package driver

import (
	"errors"
	"fmt"

	"github.com/opsgrid/netcli/channel"
	"github.com/opsgrid/netcli/privilege"
	"github.com/opsgrid/netcli/transport"
)

// Error taxonomy. classify wraps a lower-layer error that matches a known
// transport, channel or privilege sentinel in exactly one of these
// (ConnectionError also catches anything reported by transport as
// connection-lost or as an Open timeout). Other errors, such as hook
// errors or unrecognised transport errors, are returned unchanged.
var (
	// ErrNotOpened: operation attempted on a closed driver.
	ErrNotOpened = errors.New("driver: not opened")

	// ErrConnectionError: the transport could not be established or was
	// lost mid-session. Fatal for this driver instance.
	ErrConnectionError = errors.New("driver: connection error")

	// ErrAuthFailed: in-channel or library-level authentication was
	// rejected.
	ErrAuthFailed = errors.New("driver: authentication failed")

	// ErrOperationTimeout: timeout_ops or the read deadline elapsed without
	// the expected state transition. The connection is always closed
	// before this is returned.
	ErrOperationTimeout = errors.New("driver: operation timed out")

	// ErrPrivilegeError: the privilege engine could not reach the target
	// level.
	ErrPrivilegeError = errors.New("driver: privilege error")

	// ErrInvalidArgument: caller misuse (e.g. an empty command list).
	ErrInvalidArgument = errors.New("driver: invalid argument")

	// ErrUnsupported: feature unavailable for the chosen transport or
	// platform (e.g. configuration sessions on a platform that has none).
	ErrUnsupported = errors.New("driver: unsupported")
)

// classify maps a lower-layer error (transport, channel, privilege) onto
// this package's taxonomy, preserving the original as the wrapped cause so
// errors.Is/As still reaches it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, transport.ErrNotOpened):
		return fmt.Errorf("%w: %w", ErrNotOpened, err)
	case errors.Is(err, transport.ErrConnectionLost), errors.Is(err, transport.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrConnectionError, err)
	case errors.Is(err, transport.ErrAuthFailed), errors.Is(err, channel.ErrAuthFailed):
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	case errors.Is(err, channel.ErrPromptTimeout):
		return fmt.Errorf("%w: %w", ErrOperationTimeout, err)
	case errors.Is(err, privilege.ErrMismatch), errors.Is(err, privilege.ErrUnknownLevel):
		return fmt.Errorf("%w: %w", ErrPrivilegeError, err)
	default:
		return err
	}
}
