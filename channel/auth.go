package channel

import (
	"context"
	"regexp"
)

// AuthenticateTelnet drives the in-band telnet login conversation: it reads
// until a username/login prompt, password prompt, or the base command
// prompt appears, responding to the first two and treating the third as
// success. An AuthFailurePattern match, if configured, fails fast.
func (c *Channel) AuthenticateTelnet(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, []authStep{
		{pattern: c.cfg.UsernamePattern, send: username},
		{pattern: c.cfg.PasswordPattern, send: password},
	})
}

// AuthenticateSSH drives the in-band password/passphrase prompts that
// appear when SystemSSH types credentials into the terminal. Key-only auth
// never shows a prompt at all; in that case the loop proceeds straight to
// the base prompt and succeeds.
func (c *Channel) AuthenticateSSH(ctx context.Context, password, keyPassphrase string) error {
	return c.authenticate(ctx, []authStep{
		{pattern: c.cfg.PassphrasePattern, send: keyPassphrase},
		{pattern: c.cfg.PasswordPattern, send: password},
	})
}

type authStep struct {
	pattern *regexp.Regexp
	send    string
}

// authenticate loops: on every read, check (in order) the failure pattern,
// the base prompt pattern, and each step's pattern against the trailing
// window. A step match sends its credential (hidden, no echo wait) and
// keeps looping; a prompt match means the device accepted the session; a
// failure match returns ErrAuthFailed.
func (c *Channel) authenticate(ctx context.Context, steps []authStep) error {
	if err := c.t.SetTimeout(pollInterval); err != nil {
		return err
	}
	depth := c.cfg.searchDepth()
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return ErrAuthFailed
		default:
		}

		chunk, err := c.read()
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		buf = append(buf, chunk...)

		window := buf
		if len(window) > depth {
			window = window[len(window)-depth:]
		}

		if c.cfg.AuthFailurePattern != nil && c.cfg.AuthFailurePattern.Find(window) != nil {
			return ErrAuthFailed
		}
		if c.cfg.PromptPattern != nil && c.cfg.PromptPattern.Find(window) != nil {
			return nil
		}
		for _, step := range steps {
			if step.pattern == nil {
				continue
			}
			if step.pattern.Find(window) != nil {
				if _, err := c.t.Write([]byte(step.send + c.cfg.returnChar())); err != nil {
					return err
				}
				// Reset the window so the prompt we just answered isn't
				// matched again on the next iteration.
				buf = nil
				break
			}
		}
	}
}
