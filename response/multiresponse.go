package response

import "strings"

// MultiResponse is an ordered sequence of Response values produced by a
// multi-command operation (send_commands, send_configs).
type MultiResponse []*Response

// Failed is true if any element Failed.
func (m MultiResponse) Failed() bool {
	for _, r := range m {
		if r.Failed {
			return true
		}
	}
	return false
}

// Result concatenates each element's input and decoded output, in order.
func (m MultiResponse) Result() string {
	var b strings.Builder
	for _, r := range m {
		b.WriteString(r.ChannelInput)
		b.WriteString("\n")
		b.WriteString(r.Result)
		b.WriteString("\n")
	}
	return b.String()
}

// RaiseForStatus returns the first failing element's CommandFailure, or nil
// if none failed.
func (m MultiResponse) RaiseForStatus() error {
	for _, r := range m {
		if err := r.RaiseForStatus(); err != nil {
			return err
		}
	}
	return nil
}
