package driver

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/opsgrid/netcli/channel"
	"github.com/opsgrid/netcli/privilege"
	"github.com/opsgrid/netcli/response"
)

// NetworkDriver adds privilege-level awareness on top of GenericDriver:
// acquiring/escalating privilege levels and sending configuration the way
// a network device expects it.
type NetworkDriver struct {
	*GenericDriver

	priv *privilege.Engine
	m    *privilege.Map

	// DefaultDesiredPrivilegeLevel is the level every command-shaped
	// operation acquires before sending.
	DefaultDesiredPrivilegeLevel string

	// ConfigurationPrivilegeLevel is the level SendConfig(s) acquires by
	// default, normally the platform's canonical configuration mode.
	ConfigurationPrivilegeLevel string
}

// NewNetwork constructs a NetworkDriver over an already-built
// GenericDriver and a privilege Map. secondaryPassword answers any
// escalate_auth challenge encountered during privilege walks; if it is
// empty, gd's AuthConfig.SecondaryPassword is used.
func NewNetwork(gd *GenericDriver, m *privilege.Map, defaultLevel, secondaryPassword string) *NetworkDriver {
	if secondaryPassword == "" {
		secondaryPassword = gd.auth.SecondaryPassword
	}
	eng := privilege.NewEngine(gd.ch, m)
	eng.SecondaryPassword = secondaryPassword
	cfgLevel := defaultLevel
	if m.Get("configuration") != nil {
		cfgLevel = "configuration"
	}
	return &NetworkDriver{
		GenericDriver:                gd,
		priv:                         eng,
		m:                            m,
		DefaultDesiredPrivilegeLevel: defaultLevel,
		ConfigurationPrivilegeLevel:  cfgLevel,
	}
}

// AcquirePriv walks the privilege tree to target, issuing whatever
// escalate/deescalate inputs the path requires.
func (d *NetworkDriver) AcquirePriv(ctx context.Context, target string) error {
	opCtx, cancel := d.withOpTimeout(ctx, 0)
	defer cancel()
	if err := d.lockIfNeeded(opCtx); err != nil {
		return classify(err)
	}
	defer d.unlockIfNeeded()
	if err := d.priv.Acquire(opCtx, target); err != nil {
		d.logError("acquire privilege level %q failed: %v", target, err)
		if errors.Is(err, channel.ErrPromptTimeout) {
			_ = d.tr.Close()
		}
		return classify(err)
	}
	d.logf("acquired privilege level %q", target)
	return nil
}

// CurrentPriv returns the engine's believed current level, or "" if it has
// not yet been discovered.
func (d *NetworkDriver) CurrentPriv() string {
	return d.priv.Current()
}

// SendCommand acquires DefaultDesiredPrivilegeLevel, then delegates to the
// generic driver. Every command-shaped operation on a NetworkDriver goes
// through the privilege engine first so the session is always in a known
// mode before input is sent.
func (d *NetworkDriver) SendCommand(ctx context.Context, cmd string, failedWhenContains []string, timeoutOps time.Duration) (*response.Response, error) {
	if err := d.AcquirePriv(ctx, d.DefaultDesiredPrivilegeLevel); err != nil {
		return nil, err
	}
	return d.GenericDriver.SendCommand(ctx, cmd, failedWhenContains, timeoutOps)
}

// SendCommands acquires DefaultDesiredPrivilegeLevel, then delegates.
func (d *NetworkDriver) SendCommands(ctx context.Context, cmds []string, failedWhenContains []string, stopOnFailed, eager bool, timeoutOps time.Duration) (response.MultiResponse, error) {
	if err := d.AcquirePriv(ctx, d.DefaultDesiredPrivilegeLevel); err != nil {
		return nil, err
	}
	return d.GenericDriver.SendCommands(ctx, cmds, failedWhenContains, stopOnFailed, eager, timeoutOps)
}

// SendInteractive acquires DefaultDesiredPrivilegeLevel, then delegates.
func (d *NetworkDriver) SendInteractive(ctx context.Context, events []channel.InteractEvent, completionPatterns []*regexp.Regexp, failedWhenContains []string, timeoutOps time.Duration) (*response.Response, error) {
	if err := d.AcquirePriv(ctx, d.DefaultDesiredPrivilegeLevel); err != nil {
		return nil, err
	}
	return d.GenericDriver.SendInteractive(ctx, events, completionPatterns, failedWhenContains, timeoutOps)
}

// SendAndRead acquires DefaultDesiredPrivilegeLevel, then delegates.
func (d *NetworkDriver) SendAndRead(ctx context.Context, text string, expectedOutputs []*regexp.Regexp, readDuration time.Duration, failedWhenContains []string, timeoutOps time.Duration) (*response.Response, error) {
	if err := d.AcquirePriv(ctx, d.DefaultDesiredPrivilegeLevel); err != nil {
		return nil, err
	}
	return d.GenericDriver.SendAndRead(ctx, text, expectedOutputs, readDuration, failedWhenContains, timeoutOps)
}

// SendConfig sends cfg split on newlines as a sequence of commands at the
// configuration level, and returns the aggregated MultiResponse.
func (d *NetworkDriver) SendConfig(ctx context.Context, cfg string, failedWhenContains []string, timeoutOps time.Duration) (response.MultiResponse, error) {
	lines := splitNonEmptyLines(cfg)
	return d.SendConfigs(ctx, lines, "", failedWhenContains, true, timeoutOps)
}

// SendConfigs acquires privilegeLevel, then sends each of cfgs in order.
// If abortOnFailed, any Failed element stops the remaining sends (the
// caller is responsible for issuing whatever abort/rollback command the
// platform needs; this just stops digging the hole deeper).
func (d *NetworkDriver) SendConfigs(ctx context.Context, cfgs []string, privilegeLevel string, failedWhenContains []string, abortOnFailed bool, timeoutOps time.Duration) (response.MultiResponse, error) {
	if len(cfgs) == 0 {
		return nil, ErrInvalidArgument
	}
	if privilegeLevel == "" {
		privilegeLevel = d.ConfigurationPrivilegeLevel
	}
	if err := d.AcquirePriv(ctx, privilegeLevel); err != nil {
		return nil, err
	}
	// Delegate straight to the generic driver: the session is already at
	// the requested configuration level and must stay there.
	return d.GenericDriver.SendCommands(ctx, cfgs, failedWhenContains, abortOnFailed, false, timeoutOps)
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// RegisterConfigurationSession registers a named, transactional
// configuration level on top of baseLevel, points the channel at the
// recomputed combined prompt pattern, and immediately acquires the new
// level.
func (d *NetworkDriver) RegisterConfigurationSession(ctx context.Context, name, baseLevel, promptPattern, escalateCmd, deescalateCmd string) error {
	if _, err := d.m.RegisterConfigurationSession(name, baseLevel, promptPattern, escalateCmd, deescalateCmd); err != nil {
		return classify(err)
	}
	d.ch.SetPromptPattern(d.m.Combined())
	return d.AcquirePriv(ctx, "configuration-session-"+name)
}

// TeardownConfigurationSession removes a previously registered session
// level and restores the channel's prompt pattern. Callers must send
// whatever commit/abort input the platform requires before calling this.
func (d *NetworkDriver) TeardownConfigurationSession(name string) {
	d.m.TeardownConfigurationSession(name)
	d.ch.SetPromptPattern(d.m.Combined())
	if d.priv.Current() == "configuration-session-"+name {
		// The cursor pointed at the removed level; force rediscovery on the
		// next Acquire.
		d.priv.SetCurrent("")
	}
}

// Commandeer transplants ownership of a GenericDriver's already-open
// Transport/Channel into a new NetworkDriver over m, without reopening or
// reauthenticating. The source driver must not be used afterward. This
// supports moving a bare GenericDriver session under privilege-aware
// management once the caller has identified the platform.
func Commandeer(gd *GenericDriver, m *privilege.Map, defaultLevel, secondaryPassword string) *NetworkDriver {
	return NewNetwork(gd, m, defaultLevel, secondaryPassword)
}
