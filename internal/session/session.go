// Package session establishes an authenticated portal session by driving
// the sign-in form through its email, password and optional MFA steps.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/failure"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/outcome"
	"github.com/jmylchreest/educrawler/internal/portal"
	"github.com/jmylchreest/educrawler/internal/wait"
)

// State is a step of the sign-in handshake.
type State int

const (
	NotStarted State = iota
	EmailEntered
	PasswordEntered
	MfaPending
	MfaApproved
	MfaTimedOut
	Authenticated
	CredentialError
	// Failed covers failures that are neither credential nor MFA related,
	// such as a sign-in form that never rendered.
	Failed
)

var stateNames = map[State]string{
	NotStarted:      "not-started",
	EmailEntered:    "email-entered",
	PasswordEntered: "password-entered",
	MfaPending:      "mfa-pending",
	MfaApproved:     "mfa-approved",
	MfaTimedOut:     "mfa-timed-out",
	Authenticated:   "authenticated",
	CredentialError: "credential-error",
	Failed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures the handshake.
type Options struct {
	Email    string
	Password string
	MFA      bool // Wait for multi-factor approval after the password

	PollInterval time.Duration
	Timeout      time.Duration // Bound for each form step
	MFATimeout   time.Duration // Bound for MFA approval
	SettleDelay  time.Duration // Fixed delay after each submit

	Selectors portal.Selectors
}

// Session is an authenticated portal session. It owns its page.
type Session struct {
	Page  browser.Page
	Email string

	authenticated bool
}

// Authenticated reports whether the handshake completed and the session
// has not been closed.
func (s *Session) Authenticated() bool {
	return s != nil && s.authenticated
}

// Close tears down the page.
func (s *Session) Close() error {
	if s == nil || s.Page == nil {
		return nil
	}
	s.authenticated = false
	return s.Page.Close()
}

// Handshake drives one sign-in attempt. It is not retried internally.
type Handshake struct {
	opts  Options
	state State
	page  browser.Page
}

// NewHandshake returns a handshake in the NotStarted state.
func NewHandshake(opts Options) *Handshake {
	return &Handshake{opts: opts}
}

// State returns the current handshake state.
func (h *Handshake) State() State {
	return h.state
}

func (h *Handshake) transition(s State) {
	logger.Debug("login state", "from", h.state, "to", s)
	h.state = s
}

// Establish launches a browser and signs in. On failure the page is closed
// and no session is returned.
func (h *Handshake) Establish(ctx context.Context, launcher browser.Launcher) outcome.Outcome[*Session] {
	if h.state != NotStarted {
		return outcome.Fail[*Session](errors.New("handshake already used"))
	}

	page, err := launcher.Launch(ctx)
	if err != nil {
		h.transition(Failed)
		return outcome.Fail[*Session](fmt.Errorf("launch browser: %w", err))
	}
	h.page = page

	if err := h.signIn(ctx); err != nil {
		if h.state != CredentialError && h.state != MfaTimedOut {
			h.transition(Failed)
		}
		if cerr := page.Close(); cerr != nil {
			logger.Warn("closing page", "error", cerr)
		}
		h.page = nil
		logger.Error("login failed", "state", h.state, "error", err)
		return outcome.Fail[*Session](err)
	}

	h.transition(Authenticated)
	logger.Info("logged in", "email", h.opts.Email)
	return outcome.Ok(&Session{Page: page, Email: h.opts.Email, authenticated: true})
}

func (h *Handshake) signIn(ctx context.Context) error {
	logger.Info("logging in", "address", portal.Address, "email", h.opts.Email)
	if err := h.page.Open(ctx, portal.Address); err != nil {
		return err
	}
	if err := wait.Settle(ctx, h.opts.SettleDelay, "sign-in page"); err != nil {
		return err
	}

	if err := h.submitEmail(ctx); err != nil {
		return err
	}
	if err := h.submitPassword(ctx); err != nil {
		return err
	}
	if err := h.awaitConfirmation(ctx); err != nil {
		return err
	}

	return h.confirm(ctx)
}

// confirm submits the final sign-in form. After MFA the form is required;
// without MFA the portal may go straight to home.
func (h *Handshake) confirm(ctx context.Context) error {
	submit, err := h.page.FindOne(ctx, h.opts.Selectors.SubmitButton)
	if errors.Is(err, browser.ErrNotFound) && !h.opts.MFA {
		logger.Debug("no sign-in confirmation shown")
		return nil
	}
	if err != nil {
		return fmt.Errorf("confirm sign-in: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("confirm sign-in: %w", err)
	}
	return wait.Settle(ctx, h.opts.SettleDelay, "sign-in confirmed")
}

func (h *Handshake) submitEmail(ctx context.Context) error {
	sel := h.opts.Selectors
	if err := h.fill(ctx, "email", sel.EmailInput, h.opts.Email); err != nil {
		return err
	}
	h.transition(EmailEntered)

	// Either the password form or a username error follows.
	rejected, err := wait.For(ctx, h.waitOpts("password form", h.opts.Timeout), func(ctx context.Context) (bool, bool, error) {
		if found, err := browser.Present(ctx, h.page, sel.UsernameError); found || err != nil {
			return true, true, err
		}
		found, err := browser.Present(ctx, h.page, sel.PasswordInput)
		return false, found, err
	})
	if err != nil {
		return err
	}
	if rejected {
		h.transition(CredentialError)
		return failure.Credential("submit email", "username may be incorrect")
	}
	return nil
}

func (h *Handshake) submitPassword(ctx context.Context) error {
	if err := h.fill(ctx, "password", h.opts.Selectors.PasswordInput, h.opts.Password); err != nil {
		return err
	}
	h.transition(PasswordEntered)
	return wait.Settle(ctx, h.opts.SettleDelay, "password submitted")
}

// awaitConfirmation polls until the password form is replaced, checking for
// credential errors and the MFA prompt on every tick. With MFA it waits for
// the final confirmation form.
func (h *Handshake) awaitConfirmation(ctx context.Context) error {
	sel := h.opts.Selectors
	timeout := h.opts.Timeout
	if h.opts.MFA {
		timeout = h.opts.MFATimeout
		logger.Info("waiting for MFA approval", "timeout", timeout)
	}

	var credErr error
	err := wait.Until(ctx, h.waitOpts("sign-in confirmation", timeout), func(ctx context.Context) (bool, error) {
		for _, indicator := range []struct{ selector, detail string }{
			{sel.UsernameError, "username may be incorrect"},
			{sel.PasswordError, "password may be incorrect"},
		} {
			found, err := browser.Present(ctx, h.page, indicator.selector)
			if err != nil {
				return false, err
			}
			if found {
				credErr = failure.Credential("submit password", indicator.detail)
				return true, nil
			}
		}

		if h.opts.MFA {
			pending, err := browser.Present(ctx, h.page, sel.AwaitApproval)
			if err != nil {
				return false, err
			}
			if pending {
				if h.state != MfaPending {
					h.transition(MfaPending)
				}
				return false, nil
			}
		}

		// The password form keeps its own submit button until it is replaced.
		if onForm, err := browser.Present(ctx, h.page, sel.PasswordInput); onForm || err != nil {
			return false, err
		}
		if !h.opts.MFA {
			return true, nil
		}
		return browser.Present(ctx, h.page, sel.SubmitButton)
	})

	switch {
	case credErr != nil:
		h.transition(CredentialError)
		return credErr
	case err != nil && h.opts.MFA && wait.IsTimeout(err):
		h.transition(MfaTimedOut)
		return fmt.Errorf("MFA not approved: %w", err)
	case err != nil:
		return err
	}

	if h.opts.MFA {
		h.transition(MfaApproved)
		logger.Info("MFA approved")
	}
	return nil
}

// fill waits for the input at selector, types value into it and submits.
func (h *Handshake) fill(ctx context.Context, name, selector, value string) error {
	input, err := browser.Await(ctx, h.page, h.waitOpts(name+" input", h.opts.Timeout), selector)
	if err != nil {
		return err
	}
	if err := input.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	if err := input.SendKeys(ctx, value); err != nil {
		return fmt.Errorf("enter %s: %w", name, err)
	}

	submit, err := h.page.FindOne(ctx, h.opts.Selectors.SubmitButton)
	if err != nil {
		return fmt.Errorf("submit %s: %w", name, err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("submit %s: %w", name, err)
	}
	return nil
}

func (h *Handshake) waitOpts(op string, timeout time.Duration) wait.Options {
	return wait.Options{Operation: op, Timeout: timeout, Interval: h.opts.PollInterval}
}
