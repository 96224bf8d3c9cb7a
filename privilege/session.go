package privilege

import "fmt"

// RegisterConfigurationSession synthesizes a new Level for a named,
// transactional configuration context: its pattern embeds name, its
// PreviousPriv is baseLevel (the family's canonical configuration level),
// and its Escalate is the device-specific "configure session <name>"-shaped
// command supplied by the caller. The map's combined pattern is recomputed
// as part of Register.
func (m *Map) RegisterConfigurationSession(name, baseLevel, promptPattern, escalateCmd, deescalateCmd string) (*Level, error) {
	if m.Get(baseLevel) == nil {
		return nil, fmt.Errorf("privilege: unknown base level %q for configuration session %q", baseLevel, name)
	}
	pattern, err := CompilePattern(promptPattern)
	if err != nil {
		return nil, err
	}
	lvl := &Level{
		Name:         "configuration-session-" + name,
		Pattern:      pattern,
		PreviousPriv: baseLevel,
		Escalate:     escalateCmd,
		Deescalate:   deescalateCmd,
	}
	if err := m.Register(lvl); err != nil {
		return nil, err
	}
	return lvl, nil
}

// TeardownConfigurationSession removes a previously registered session
// level from the map. The driver is responsible for issuing the explicit
// abort/commit input before calling this, since that input is platform
// specific and not part of the level's own Deescalate.
func (m *Map) TeardownConfigurationSession(name string) {
	m.Unregister("configuration-session-" + name)
}
