package privilege

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeLevelMap(t *testing.T) *Map {
	t.Helper()
	execPattern, err := CompilePattern(`^rtr1>\s?$`)
	require.NoError(t, err)
	privPattern, err := CompilePattern(`^rtr1#\s?$`)
	require.NoError(t, err)
	cfgPattern, err := CompilePattern(`^rtr1\(config\)#\s?$`)
	require.NoError(t, err)
	escalatePrompt, err := CompilePattern(`^password:\s?$`)
	require.NoError(t, err)

	m, err := NewMap(
		&Level{Name: "exec", Pattern: execPattern},
		&Level{
			Name: "privileged", Pattern: privPattern, PreviousPriv: "exec",
			Escalate: "enable", EscalateAuth: true, EscalatePrompt: escalatePrompt,
			Deescalate: "disable",
		},
		&Level{
			Name: "configuration", Pattern: cfgPattern, PreviousPriv: "privileged",
			Escalate: "configure terminal", Deescalate: "end",
		},
	)
	require.NoError(t, err)
	return m
}

func TestNewMapRejectsMultipleRoots(t *testing.T) {
	p1, _ := CompilePattern(`^a>\s?$`)
	p2, _ := CompilePattern(`^b>\s?$`)
	_, err := NewMap(&Level{Name: "a", Pattern: p1}, &Level{Name: "b", Pattern: p2})
	assert.Error(t, err)
}

func TestNewMapRejectsUnknownPreviousPriv(t *testing.T) {
	p1, _ := CompilePattern(`^a>\s?$`)
	_, err := NewMap(&Level{Name: "a", Pattern: p1, PreviousPriv: "ghost"})
	assert.Error(t, err)
}

func TestMapIdentifyNotContainsDisambiguates(t *testing.T) {
	// The broad configuration pattern matches both prompts; not_contains
	// knocks it out when the prompt is actually the exclusive variant.
	cfgPattern, _ := CompilePattern(`^rtr1\(config[\w\-]*\)#\s?$`)
	exclusivePattern, _ := CompilePattern(`^rtr1\(config-exclusive\)#\s?$`)
	m, err := NewMap(
		&Level{Name: "configuration", Pattern: cfgPattern, NotContains: []string{"exclusive"}},
		&Level{Name: "configuration-exclusive", Pattern: exclusivePattern, PreviousPriv: "configuration"},
	)
	require.NoError(t, err)

	got := m.Identify("rtr1(config-exclusive)#")
	require.NotNil(t, got)
	assert.Equal(t, "configuration-exclusive", got.Name)

	got = m.Identify("rtr1(config)#")
	require.NotNil(t, got)
	assert.Equal(t, "configuration", got.Name)
}

func TestMapIdentifyTieBreaksOnLongestPattern(t *testing.T) {
	shortPattern, _ := CompilePattern(`^sw\d#\s?$`)
	longPattern, _ := CompilePattern(`^sw\d(#|\(maint\)#)\s?$`)
	m, err := NewMap(
		&Level{Name: "short", Pattern: shortPattern},
		&Level{Name: "long", Pattern: longPattern, PreviousPriv: "short"},
	)
	require.NoError(t, err)

	got := m.Identify("sw1#")
	require.NotNil(t, got)
	assert.Equal(t, "long", got.Name)
}

func TestMapPathStraightLine(t *testing.T) {
	m := threeLevelMap(t)
	steps, err := m.Path("exec", "configuration")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, Step{Target: "privileged", Kind: Escalate}, steps[0])
	assert.Equal(t, Step{Target: "configuration", Kind: Escalate}, steps[1])
}

func TestMapPathDeescalatesToAncestor(t *testing.T) {
	m := threeLevelMap(t)
	steps, err := m.Path("configuration", "exec")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, Deescalate, steps[0].Kind)
	assert.Equal(t, Deescalate, steps[1].Kind)
}

func TestMapRegisterRecomputesCombined(t *testing.T) {
	m := threeLevelMap(t)
	before := m.Combined().String()

	sessionPattern, _ := CompilePattern(`^rtr1\(config-s-test\)#\s?$`)
	require.NoError(t, m.Register(&Level{Name: "session-test", Pattern: sessionPattern, PreviousPriv: "configuration"}))

	after := m.Combined().String()
	assert.NotEqual(t, before, after)
	assert.Contains(t, after, "config-s-test")

	m.Unregister("session-test")
	assert.NotContains(t, m.Combined().String(), "config-s-test")
}

func TestRegisterConfigurationSessionHelper(t *testing.T) {
	m := threeLevelMap(t)
	lvl, err := m.RegisterConfigurationSession("test", "configuration", `^rtr1\(config-s-test\)#\s?$`, "configure session test", "end")
	require.NoError(t, err)
	assert.Equal(t, "configuration-session-test", lvl.Name)

	m.TeardownConfigurationSession("test")
	assert.Nil(t, m.Get("configuration-session-test"))
}
