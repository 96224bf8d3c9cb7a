// Package privilege implements the per-platform privilege-level state
// machine: a tree of named modes, each with its own prompt pattern and
// escalate/deescalate instructions, navigated automatically toward a
// caller-specified target before every driver operation.
package privilege

import (
	"fmt"
	"regexp"
	"strings"
)

// Level is one named mode in a device's privilege tree: user exec,
// privileged exec, configuration, and so on.
type Level struct {
	// Name identifies the level, e.g. "exec", "privileged", "configuration".
	Name string

	// Pattern is the regex expected to match the device's prompt while in
	// this level. CompilePattern and LoadMapYAML compile it with (?im)
	// regardless of how the pattern string was written; a Pattern assigned
	// directly is used as given.
	Pattern *regexp.Regexp

	// PreviousPriv names the adjacent lower level, or "" if this is the
	// tree's root.
	PreviousPriv string

	// Escalate is the input sent to move from PreviousPriv into this level.
	Escalate string

	// EscalateAuth is true when Escalate is followed by a password
	// challenge rather than landing directly on this level's prompt.
	EscalateAuth bool

	// EscalatePrompt is the regex expected immediately after Escalate when
	// EscalateAuth is true.
	EscalatePrompt *regexp.Regexp

	// Deescalate is the input sent to move from this level back to
	// PreviousPriv.
	Deescalate string

	// NotContains lists substrings that disqualify an otherwise-matching
	// prompt, used to tell apart overlapping patterns (e.g.
	// "configuration" vs "configuration-exclusive").
	NotContains []string
}

// matches reports whether prompt satisfies both Pattern and NotContains.
func (l *Level) matches(prompt string) bool {
	if l.Pattern == nil || !l.Pattern.MatchString(prompt) {
		return false
	}
	for _, n := range l.NotContains {
		if strings.Contains(prompt, n) {
			return false
		}
	}
	return true
}

// CompilePattern compiles pattern forcing multi-line, case-insensitive
// matching, regardless of whether the caller's string already carries
// those flags.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("privilege: compile pattern %q: %w", pattern, err)
	}
	return re, nil
}
