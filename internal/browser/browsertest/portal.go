// Package browsertest provides a scripted stand-in for the education portal.
//
// Portal renders its current state to HTML following the production DOM
// contract and answers lookups with goquery, so the crawl engine runs against
// it unmodified. Every top-level lookup is one render; fixtures delay
// content by a number of renders to simulate asynchronous loading.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/portal"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("page closed")

// Handout is a handout fixture.
type Handout struct {
	Name     string
	Budget   string
	Consumed string
	Status   string

	SubscriptionName   string // Default: Name
	SubscriptionID     string
	SubscriptionStatus string
	Expiry             string // As the portal renders it, e.g. "Mar 4, 2022"
	Users              []string

	LoadPolls   int  // Renders the consumed cell shows the placeholder
	StaleClicks int  // Clicks on the row link that fail because the grid re-rendered
	DetailPolls int  // Renders the detail blade keeps showing the previous subscription
	Malformed   bool // Render the grid row with too few cells
}

// Lab is a lab fixture.
type Lab struct {
	Name     string
	Handouts []Handout
	NoMore   bool // Omit the "more handouts" control
	RowPolls int  // Renders the handout grid stays empty
}

// Course is a course fixture.
type Course struct {
	Name          string
	Credit        string
	Consumed      string
	Students      string
	ProjectGroups string
	Title         string // Overview title if it differs from Name
	Labs          []Lab
}

type phase int

const (
	phaseEmail phase = iota
	phasePassword
	phaseMFA
	phaseConfirm
	phaseAuthenticated
)

type place int

const (
	placeBlank place = iota
	placeLogin
	placeHome
	placeCourses
	placeOverview
)

// Blade depths below the menu blade.
const (
	depthMenu = iota
	depthCourse
	depthLab
	depthHandouts
	depthDetail
)

// Portal is a fake portal page. Configure the exported fields before use;
// they must not be changed while a crawl runs.
type Portal struct {
	Email    string
	Password string
	MFA      bool
	MFAPolls int // Renders the approval prompt stays up; negative means never approved
	// SkipConfirm lands on home right after the password when MFA is off.
	SkipConfirm bool

	Courses         []Course
	CourseListPolls int // Renders before course rows appear
	ExtraBlades     []string
	UsageReport     []byte // Written on usage download when downloads are allowed

	LaunchErr error

	mu sync.Mutex

	opened []string
	clicks []string
	closed bool

	typed         map[string]string
	phase         phase
	emailRejected bool
	passRejected  bool
	mfaStart      int

	place    place
	url      string
	depth    int
	course   int
	lab      int
	handout  int
	openedAt [depthDetail + 1]int
	lastSub  string

	downloadDir string
	renders     int
	staleClicks map[string]int
}

var (
	_ browser.Page       = (*Portal)(nil)
	_ browser.Launcher   = (*Portal)(nil)
	_ browser.Downloader = (*Portal)(nil)
)

// Launch returns the portal itself as the page.
func (p *Portal) Launch(ctx context.Context) (browser.Page, error) {
	if p.LaunchErr != nil {
		return nil, p.LaunchErr
	}
	return p, nil
}

// Opened returns the addresses passed to Open, in order.
func (p *Portal) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opened...)
}

// Clicks returns the actions triggered by clicks, in order, e.g. "lab:0:1".
func (p *Portal) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Closed reports whether Close was called.
func (p *Portal) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Renders returns the number of renders so far.
func (p *Portal) Renders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renders
}

// Authenticate skips the sign-in form.
func (p *Portal) Authenticate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phaseAuthenticated
	p.place = placeHome
}

// ShowHandouts signs in and opens the handout list of a lab directly.
func (p *Portal) ShowHandouts(course, lab int) {
	p.Authenticate()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open(portal.CoursesAddress)
	p.openBlade(depthHandouts, course, lab, 0)
}

// ShowHandout signs in and opens the detail blade of a handout directly.
func (p *Portal) ShowHandout(course, lab, handout int) {
	p.Authenticate()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open(portal.CoursesAddress)
	p.openBlade(depthHandouts, course, lab, 0)
	p.openBlade(depthDetail, course, lab, handout)
}

// Open navigates to url.
func (p *Portal) Open(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.opened = append(p.opened, url)
	p.open(url)
	return nil
}

func (p *Portal) open(url string) {
	p.url = url
	p.depth = depthMenu

	authed := p.phase == phaseAuthenticated
	switch {
	case url == portal.Address && !authed:
		p.place = placeLogin
	case url == portal.Address:
		p.place = placeHome
	case url == portal.CoursesAddress && authed:
		p.place = placeCourses
		p.openedAt[depthMenu] = p.renders
	case url == portal.OverviewAddress && authed:
		p.place = placeOverview
	case url == portal.CoursesAddress, url == portal.OverviewAddress:
		p.place = placeLogin
	default:
		p.place = placeBlank
	}
}

// CurrentURL returns the last opened address.
func (p *Portal) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	return p.url, nil
}

// Refresh reopens the current address.
func (p *Portal) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.open(p.url)
	return nil
}

// HTML renders the current document.
func (p *Portal) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	p.renders++
	return p.render(), nil
}

// AllowDownloads writes subsequent usage downloads into dir.
func (p *Portal) AllowDownloads(ctx context.Context, dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloadDir = dir
	return nil
}

// Close ends the session.
func (p *Portal) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// FindOne renders the document and returns the first match.
func (p *Portal) FindOne(ctx context.Context, selector string) (browser.Element, error) {
	sel, err := p.snapshot(ctx, selector)
	if err != nil {
		return nil, err
	}
	return first(p, sel, selector)
}

// FindMany renders the document and returns every match.
func (p *Portal) FindMany(ctx context.Context, selector string) ([]browser.Element, error) {
	sel, err := p.snapshot(ctx, selector)
	if err != nil {
		return nil, err
	}
	return all(p, sel), nil
}

func (p *Portal) snapshot(ctx context.Context, selector string) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.renders++
	doc := p.render()
	p.mu.Unlock()

	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	return d.Find(selector), nil
}

func first(p *Portal, sel *goquery.Selection, selector string) (browser.Element, error) {
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, browser.ErrNotFound)
	}
	return &element{portal: p, sel: sel.First()}, nil
}

func all(p *Portal, sel *goquery.Selection) []browser.Element {
	els := make([]browser.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		els = append(els, &element{portal: p, sel: s})
	})
	return els
}

// element is a node of one rendered snapshot. Lookups below it search the
// snapshot; clicks act on the live portal.
type element struct {
	portal *Portal
	sel    *goquery.Selection
}

func (e *element) Text(ctx context.Context) (string, error) {
	if e.portal.Closed() {
		return "", ErrClosed
	}
	return strings.Join(strings.Fields(e.sel.Text()), " "), nil
}

func (e *element) Click(ctx context.Context) error {
	action, ok := e.sel.Attr("data-click")
	if !ok {
		return nil
	}
	return e.portal.click(action)
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	name, ok := e.sel.Attr("data-input")
	if !ok {
		return fmt.Errorf("element does not accept input")
	}
	return e.portal.input(name, text, false)
}

func (e *element) Clear(ctx context.Context) error {
	name, ok := e.sel.Attr("data-input")
	if !ok {
		return nil
	}
	return e.portal.input(name, "", true)
}

func (e *element) FindOne(ctx context.Context, selector string) (browser.Element, error) {
	return first(e.portal, e.sel.Find(selector), selector)
}

func (e *element) FindMany(ctx context.Context, selector string) ([]browser.Element, error) {
	return all(e.portal, e.sel.Find(selector)), nil
}

func (p *Portal) input(name, text string, clear bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.typed == nil {
		p.typed = make(map[string]string)
	}
	if clear {
		p.typed[name] = ""
	} else {
		p.typed[name] += text
	}
	return nil
}

// click applies action to the live state. Actions whose blade is no longer
// open fail with browser.ErrStale.
func (p *Portal) click(action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	kind, args := parseAction(action)
	stale := fmt.Errorf("click %s: %w", action, browser.ErrStale)

	switch kind {
	case "login-email":
		if p.place != placeLogin || p.phase != phaseEmail {
			return stale
		}
		if p.Email != "" && p.typed["email"] == p.Email {
			p.phase = phasePassword
		} else {
			p.emailRejected = true
		}
	case "login-password":
		if p.place != placeLogin || p.phase != phasePassword {
			return stale
		}
		switch {
		case p.typed["password"] != p.Password:
			p.passRejected = true
		case p.MFA:
			p.phase = phaseMFA
			p.mfaStart = p.renders
		case p.SkipConfirm:
			p.phase = phaseAuthenticated
			p.place = placeHome
		default:
			p.phase = phaseConfirm
		}
	case "login-confirm":
		if p.place != placeLogin || p.phase != phaseConfirm {
			return stale
		}
		p.phase = phaseAuthenticated
		p.place = placeHome
	case "course":
		if p.place != placeCourses || len(args) != 1 {
			return stale
		}
		p.openBlade(depthCourse, args[0], 0, 0)
	case "lab":
		if p.place != placeCourses || p.depth < depthCourse || len(args) != 2 || p.course != args[0] {
			return stale
		}
		p.openBlade(depthLab, args[0], args[1], 0)
	case "more":
		if p.depth < depthLab || len(args) != 2 || p.course != args[0] || p.lab != args[1] {
			return stale
		}
		p.openBlade(depthHandouts, args[0], args[1], 0)
	case "handout":
		if p.depth < depthHandouts || len(args) != 3 || p.course != args[0] || p.lab != args[1] {
			return stale
		}
		ho := p.Courses[args[0]].Labs[args[1]].Handouts[args[2]]
		if p.staleClicks[action] < ho.StaleClicks {
			if p.staleClicks == nil {
				p.staleClicks = make(map[string]int)
			}
			p.staleClicks[action]++
			return stale
		}
		p.openBlade(depthDetail, args[0], args[1], args[2])
	case "usage":
		if p.place != placeOverview {
			return stale
		}
		if p.downloadDir != "" {
			name := filepath.Join(p.downloadDir, portal.UsageFileName)
			if err := os.WriteFile(name, p.UsageReport, 0o644); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	p.clicks = append(p.clicks, action)
	return nil
}

func (p *Portal) openBlade(depth, course, lab, handout int) {
	p.depth = depth
	p.course, p.lab, p.handout = course, lab, handout
	p.openedAt[depth] = p.renders
}

func parseAction(action string) (string, []int) {
	parts := strings.Split(action, ":")
	args := make([]int, 0, len(parts)-1)
	for _, s := range parts[1:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return parts[0], nil
		}
		args = append(args, n)
	}
	return parts[0], args
}

// since returns the number of renders since the blade at depth was opened,
// including the current one.
func (p *Portal) since(depth int) int {
	return p.renders - p.openedAt[depth]
}

// render builds the current document. Called with mu held.
func (p *Portal) render() string {
	var b strings.Builder
	b.WriteString("<html><head><title>Microsoft Azure</title></head><body>")
	switch p.place {
	case placeLogin:
		p.renderLogin(&b)
	case placeHome:
		b.WriteString(`<div class="fxs-home">Home</div>`)
	case placeCourses:
		p.renderBlades(&b)
	case placeOverview:
		bladeTitle(&b, "Education")
		fmt.Fprintf(&b, `<a class="%s" data-click="usage">Download usage</a>`, class(portal.DefaultSelectors().UsageDownload))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func (p *Portal) renderLogin(b *strings.Builder) {
	switch p.phase {
	case phaseEmail:
		b.WriteString(`<input type="email" data-input="email"/>`)
		if p.emailRejected {
			b.WriteString(`<div id="usernameError">We couldn't find an account with that username.</div>`)
		}
		b.WriteString(`<input type="submit" value="Next" data-click="login-email"/>`)
	case phasePassword:
		b.WriteString(`<input name="passwd" type="password" data-input="password"/>`)
		if p.passRejected {
			b.WriteString(`<div id="passwordError">Your account or password is incorrect.</div>`)
		}
		b.WriteString(`<input type="submit" value="Sign in" data-click="login-password"/>`)
	case phaseMFA:
		if p.MFAPolls < 0 || p.renders-p.mfaStart <= p.MFAPolls {
			b.WriteString(`<div id="idDiv_SAOTCAS_Title">Approve sign in request</div>`)
			return
		}
		p.phase = phaseConfirm
		fallthrough
	case phaseConfirm:
		b.WriteString(`<div>Stay signed in?</div><input type="submit" value="Yes" data-click="login-confirm"/>`)
	}
}

func (p *Portal) renderBlades(b *strings.Builder) {
	sel := portal.DefaultSelectors()

	bladeTitle(b, "Education")
	if p.since(depthMenu) > p.CourseListPolls {
		for i, c := range p.Courses {
			b.WriteString(`<div class="fxs-portal-hover fxs-portal-focus azc-grid-row">`)
			fmt.Fprintf(b, `<div class="azc-grid-cellContent" data-click="course:%d">%s</div>`, i, esc(c.Name))
			for _, v := range []string{c.Credit, c.Consumed, c.Students, c.ProjectGroups} {
				fmt.Fprintf(b, `<div class="azc-grid-cellContent">%s</div>`, esc(v))
			}
			b.WriteString(`</div>`)
		}
	}
	for _, t := range p.ExtraBlades {
		bladeTitle(b, t)
	}
	if p.depth < depthCourse || p.course >= len(p.Courses) {
		return
	}

	course := p.Courses[p.course]
	title := course.Title
	if title == "" {
		title = course.Name
	}
	bladeTitle(b, title)
	fmt.Fprintf(b, `<div class="%s">%s</div>`, class(sel.CourseTitle), esc(title))
	fmt.Fprintf(b, `<div class="%s">`, class(sel.LabGrid))
	for j, l := range course.Labs {
		fmt.Fprintf(b, `<a class="%s" data-click="lab:%d:%d">%s</a>`, class(sel.GridLink), p.course, j, esc(l.Name))
	}
	b.WriteString(`</div>`)
	if p.depth < depthLab || p.lab >= len(course.Labs) {
		return
	}

	lab := course.Labs[p.lab]
	bladeTitle(b, lab.Name)
	if !lab.NoMore {
		fmt.Fprintf(b, `<a class="%s" data-click="more:%d:%d">More handouts</a>`, class(sel.MoreHandouts), p.course, p.lab)
	}
	if p.depth < depthHandouts {
		return
	}

	bladeTitle(b, "Handouts")
	since := p.since(depthHandouts)
	fmt.Fprintf(b, `<div class="%s">`, class(sel.HandoutGrid))
	handouts := lab.Handouts
	if since <= lab.RowPolls {
		handouts = nil
	}
	for h, ho := range handouts {
		consumed := ho.Consumed
		if since <= ho.LoadPolls {
			consumed = portal.Placeholder
		}
		b.WriteString(`<div class="azc-grid-row">`)
		fmt.Fprintf(b, `<div class="azc-grid-cellContent"><a class="%s" data-click="handout:%d:%d:%d">%s</a></div>`,
			class(sel.GridLink), p.course, p.lab, h, esc(ho.Name))
		cells := []string{"", "", ho.Budget, consumed, ho.Status}
		if ho.Malformed {
			cells = cells[:2]
		}
		for _, v := range cells {
			fmt.Fprintf(b, `<div class="azc-grid-cellContent">%s</div>`, esc(v))
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	if p.depth < depthDetail || p.handout >= len(lab.Handouts) {
		return
	}

	ho := lab.Handouts[p.handout]
	bladeTitle(b, ho.Name)
	name := ho.SubscriptionName
	if name == "" {
		name = ho.Name
	}
	if p.since(depthDetail) <= ho.DetailPolls {
		// The previous handout's subscription is still on screen.
		if p.lastSub == "" {
			return
		}
		name = p.lastSub
	} else {
		p.lastSub = name
	}
	fmt.Fprintf(b, `<div class="%s">%s</div>`, class(sel.SubscriptionName), esc(name))
	fmt.Fprintf(b, `<div class="%s">%s</div>`, class(sel.SubscriptionID), esc(ho.SubscriptionID))
	fmt.Fprintf(b, `<div class="%s">%s</div>`, class(sel.SubscriptionStatus), esc(ho.SubscriptionStatus))
	fmt.Fprintf(b, `<div class="%s">%s</div>`, class(sel.SubscriptionStatus), esc(ho.Expiry))
	for _, u := range ho.Users {
		fmt.Fprintf(b, `<div class="%s">%s</div>`, class(sel.UserEmail), esc(u))
	}
}

func bladeTitle(b *strings.Builder, title string) {
	fmt.Fprintf(b, `<div class="%s">%s</div>`, class(portal.DefaultSelectors().BladeTitle), esc(title))
}

// class turns a ".name" selector into a class attribute value.
func class(selector string) string {
	return strings.TrimPrefix(selector, ".")
}

func esc(s string) string {
	return html.EscapeString(s)
}
