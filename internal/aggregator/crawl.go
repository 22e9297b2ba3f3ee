package aggregator

import (
	"context"
	"time"

	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/extractor"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/navigator"
	"github.com/jmylchreest/educrawler/internal/outcome"
	"github.com/jmylchreest/educrawler/internal/portal"
	"github.com/jmylchreest/educrawler/internal/session"
)

// Settings are the plain values a crawl run needs.
type Settings struct {
	Email    string
	Password string
	MFA      bool

	PollInterval time.Duration
	PanelTimeout time.Duration
	MFATimeout   time.Duration
	SettleDelay  time.Duration
}

// Crawl is one authenticated run: a session and the aggregator driving it.
type Crawl struct {
	*Aggregator

	Session *session.Session
}

// Start signs in and wires the navigator and extractor to the session page.
func Start(ctx context.Context, launcher browser.Launcher, s Settings) outcome.Outcome[*Crawl] {
	sel := portal.DefaultSelectors()

	login := session.NewHandshake(session.Options{
		Email:        s.Email,
		Password:     s.Password,
		MFA:          s.MFA,
		PollInterval: s.PollInterval,
		Timeout:      s.PanelTimeout,
		MFATimeout:   s.MFATimeout,
		SettleDelay:  s.SettleDelay,
		Selectors:    sel,
	}).Establish(ctx, launcher)

	sess, ok := login.Value()
	if !ok {
		return outcome.Fail[*Crawl](login.Err())
	}

	x := extractor.New(sess.Page,
		extractor.WithPolling(s.PollInterval, s.PanelTimeout),
		extractor.WithSelectors(sel),
	)
	nav := navigator.New(sess.Page, x, navigator.Config{
		PollInterval: s.PollInterval,
		Timeout:      s.PanelTimeout,
		SettleDelay:  s.SettleDelay,
		Selectors:    sel,
	})

	return outcome.Ok(&Crawl{Aggregator: New(nav), Session: sess})
}

// Close ends the session.
func (c *Crawl) Close() error {
	logger.Debug("closing session")
	return c.Session.Close()
}
