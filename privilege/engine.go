package privilege

import (
	"context"
	"fmt"

	"github.com/opsgrid/netcli/channel"
)

// Engine drives a Channel through escalate/deescalate moves toward a
// caller-specified target level.
type Engine struct {
	ch *channel.Channel
	m  *Map

	// current is the cursor's believed level name, or "" if not yet
	// discovered.
	current string

	// SecondaryPassword answers the prompt that follows an
	// EscalateAuth-marked escalate command (e.g. "enable" then
	// "Password:").
	SecondaryPassword string
}

// NewEngine constructs an Engine over an already-open Channel and a
// PrivilegeMap. The current level starts unknown and is discovered on the
// first Acquire call.
func NewEngine(ch *channel.Channel, m *Map) *Engine {
	return &Engine{ch: ch, m: m}
}

// Current returns the cursor's believed level name, or "" if it has not
// been discovered yet.
func (e *Engine) Current() string {
	return e.current
}

// SetCurrent forces the cursor to a level without reading the device. The
// driver package's TeardownConfigurationSession uses it with "" to force
// rediscovery on the next Acquire.
func (e *Engine) SetCurrent(name string) {
	e.current = name
}

func (e *Engine) discoverCurrent(ctx context.Context) error {
	prompt, err := e.ch.GetPrompt(ctx)
	if err != nil {
		return err
	}
	lvl := e.m.Identify(prompt)
	if lvl == nil {
		return fmt.Errorf("privilege: could not identify current level from prompt %q", prompt)
	}
	e.current = lvl.Name
	return nil
}

// Acquire walks the privilege tree from the current level to target,
// issuing each step's escalate/deescalate input, and verifies the result by
// re-reading the prompt. Returns ErrMismatch if the walk lands somewhere
// other than target.
func (e *Engine) Acquire(ctx context.Context, target string) error {
	if e.m.Get(target) == nil {
		return ErrUnknownLevel
	}
	if e.current == "" {
		if err := e.discoverCurrent(ctx); err != nil {
			return err
		}
	}
	if e.current == target {
		return nil
	}

	steps, err := e.m.Path(e.current, target)
	if err != nil {
		return err
	}

	for _, step := range steps {
		switch step.Kind {
		case Deescalate:
			cur := e.m.Get(e.current)
			if cur == nil {
				return fmt.Errorf("privilege: current level %q vanished from map mid-walk", e.current)
			}
			if _, _, err := e.ch.SendInput(ctx, cur.Deescalate, false, false); err != nil {
				return err
			}
		case Escalate:
			lvl := e.m.Get(step.Target)
			if lvl == nil {
				return fmt.Errorf("privilege: target level %q vanished from map mid-walk", step.Target)
			}
			if lvl.EscalateAuth {
				events := []channel.InteractEvent{
					{Input: lvl.Escalate, Expect: lvl.EscalatePrompt},
					{Input: e.SecondaryPassword, Expect: lvl.Pattern, Hidden: true},
				}
				if _, err := e.ch.SendInputsInteract(ctx, events, nil); err != nil {
					return err
				}
			} else {
				if _, _, err := e.ch.SendInput(ctx, lvl.Escalate, false, false); err != nil {
					return err
				}
			}
		}
		e.current = step.Target
	}

	prompt, err := e.ch.GetPrompt(ctx)
	if err != nil {
		return err
	}
	final := e.m.Identify(prompt)
	if final == nil || final.Name != target {
		return ErrMismatch
	}
	e.current = target
	return nil
}
