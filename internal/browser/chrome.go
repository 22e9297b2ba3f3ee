package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/educrawler/internal/logger"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultActionTimeout bounds a single browser round trip.
const DefaultActionTimeout = 10 * time.Second

// Options configures the Chrome launcher.
type Options struct {
	Headless      bool
	Stealth       bool          // Apply anti-detection flags and script
	ChromePath    string        // Browser binary (default: FindChromePath)
	UserAgent     string        // Default: DefaultUserAgent
	ActionTimeout time.Duration // Per-action bound (default: DefaultActionTimeout)
}

// Chrome launches Chrome through chromedp.
type Chrome struct {
	opts Options
}

// NewChrome returns a launcher for opts.
func NewChrome(opts Options) *Chrome {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	return &Chrome{opts: opts}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if c.opts.Stealth {
		opts = append(opts, StealthExecAllocatorOptions()...)
	} else {
		opts = append(opts,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1920, 1080),
		)
	}
	// DefaultExecAllocatorOptions turns headless on; the last flag wins.
	opts = append(opts, chromedp.Flag("headless", c.opts.Headless))

	path := c.opts.ChromePath
	if path == "" {
		path = FindChromePath()
	}
	if path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return append(opts, chromedp.UserAgent(c.opts.UserAgent))
}

// Launch starts a browser. The browser lives until the returned page is
// closed; ctx only bounds the startup.
func (c *Chrome) Launch(ctx context.Context) (Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), c.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Trace("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	p := &ChromePage{
		ctx:     browserCtx,
		timeout: c.opts.ActionTimeout,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	var start []chromedp.Action
	if c.opts.Stealth {
		start = append(start, InjectStealthScript())
	}
	// The first Run allocates the browser, which lives as long as the
	// context of that Run, so it must not carry the action timeout.
	stop := context.AfterFunc(ctx, p.cancel)
	err := chromedp.Run(browserCtx, start...)
	stop()
	if err != nil {
		p.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Debug("browser started", "headless", c.opts.Headless, "stealth", c.opts.Stealth)
	return p, nil
}

// ChromePage is a Page backed by a chromedp tab.
type ChromePage struct {
	ctx     context.Context
	timeout time.Duration
	cancel  func()
}

// run executes actions on the tab, bounded by the action timeout and ctx.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	actx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(actx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Open navigates to url.
func (p *ChromePage) Open(ctx context.Context, url string) error {
	logger.Debug("opening", "url", url)
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

// FindOne returns the first match of selector in the document.
func (p *ChromePage) FindOne(ctx context.Context, selector string) (Element, error) {
	return p.findOne(ctx, selector)
}

// FindMany returns every match of selector in the document.
func (p *ChromePage) FindMany(ctx context.Context, selector string) ([]Element, error) {
	return p.findMany(ctx, selector)
}

func (p *ChromePage) findOne(ctx context.Context, selector string, opts ...chromedp.QueryOption) (Element, error) {
	els, err := p.findMany(ctx, selector, opts...)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return els[0], nil
}

func (p *ChromePage) findMany(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]Element, error) {
	var nodes []*cdp.Node
	opts = append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, opts...)
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, p.classify(ctx, selector, err)
	}
	els := make([]Element, len(nodes))
	for i, n := range nodes {
		els[i] = &chromeElement{page: p, node: n}
	}
	return els, nil
}

// classify maps a failed node operation to ErrStale unless the caller gave up.
func (p *ChromePage) classify(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", what, ErrStale, err)
}

// CurrentURL returns the tab's location.
func (p *ChromePage) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Refresh reloads the tab.
func (p *ChromePage) Refresh(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

// HTML returns the document's outer HTML.
func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// AllowDownloads saves downloads into dir under their suggested names.
func (p *ChromePage) AllowDownloads(ctx context.Context, dir string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			Do(ctx)
	}))
}

// Close shuts the browser down.
func (p *ChromePage) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

type chromeElement struct {
	page *ChromePage
	node *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.page.run(ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", e.page.classify(ctx, "text", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	if err := e.page.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return e.page.classify(ctx, "click", err)
	}
	return nil
}

func (e *chromeElement) SendKeys(ctx context.Context, text string) error {
	if err := e.page.run(ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID)); err != nil {
		return e.page.classify(ctx, "send keys", err)
	}
	return nil
}

func (e *chromeElement) Clear(ctx context.Context) error {
	if err := e.page.run(ctx, chromedp.Clear(e.ids(), chromedp.ByNodeID)); err != nil {
		return e.page.classify(ctx, "clear", err)
	}
	return nil
}

func (e *chromeElement) FindOne(ctx context.Context, selector string) (Element, error) {
	return e.page.findOne(ctx, selector, chromedp.FromNode(e.node))
}

func (e *chromeElement) FindMany(ctx context.Context, selector string) ([]Element, error) {
	return e.page.findMany(ctx, selector, chromedp.FromNode(e.node))
}

// Common Chrome/Chromium binary names across different systems
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath searches PATH and common install locations for a
// Chrome/Chromium binary. Returns "" if none is found, leaving the lookup
// to chromedp.
func FindChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "name", name, "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found")
	return ""
}
