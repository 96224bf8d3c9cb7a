// Package transport provides the byte-pipe implementations the channel
// package drives: SystemSSH (the host's ssh binary inside a
// pseudo-terminal), NativeSSH (an in-process SSH client), and Telnet.
//
// Framing, prompt matching, and authentication are explicitly NOT this
// package's concern; they belong to package channel. A Transport only
// promises that bytes written are delivered and bytes read were actually
// produced by the device.
//
// Callers coming from cooperative-scheduling clients sometimes expect a
// second, non-blocking flavor of each transport. Go has no separate async
// color of function: a goroutine blocked in a Read syscall already yields
// the scheduler to every other goroutine, so a separately implemented
// non-blocking Transport would duplicate the same code path for no
// behavioral difference. CooperativeSSHSelector and
// CooperativeTelnetSelector are therefore kept as named values
// (Selector.Resolved maps them onto NativeSSHSelector and TelnetSelector)
// so configuration written against that vocabulary round-trips, but only
// three concrete Transport implementations exist.
package transport
