// Package browser is the element accessor the crawl engine drives. It hides
// the browser automation backend behind a small interface: find elements by
// CSS selector, act on them, and read their text.
//
// Lookups are non-blocking. FindMany returns an empty slice when nothing
// matches and FindOne returns ErrNotFound; waiting is the caller's job (see
// package wait). Element handles may go stale when the portal re-renders,
// in which case operations on them return ErrStale.
package browser

import (
	"context"
	"errors"

	"github.com/jmylchreest/educrawler/internal/wait"
)

var (
	// ErrNotFound is returned by FindOne when no element matches.
	ErrNotFound = errors.New("element not found")
	// ErrStale is returned when an element handle no longer refers to a
	// node in the current document.
	ErrStale = errors.New("stale element")
)

// Finder looks up elements by CSS selector.
type Finder interface {
	// FindOne returns the first element matching selector.
	FindOne(ctx context.Context, selector string) (Element, error)
	// FindMany returns every element matching selector, in document order.
	FindMany(ctx context.Context, selector string) ([]Element, error)
}

// Page is a live browser page.
type Page interface {
	Finder
	// Open navigates to url.
	Open(ctx context.Context, url string) error
	// CurrentURL returns the address of the loaded document.
	CurrentURL(ctx context.Context) (string, error)
	// Refresh reloads the current document.
	Refresh(ctx context.Context) error
	// HTML returns the outer HTML of the current document.
	HTML(ctx context.Context) (string, error)
	// Close releases the page and its browser.
	Close() error
}

// Element is a handle to a node in the current document.
type Element interface {
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	// Finder searches the element's subtree.
	Finder
}

// Launcher starts a browser and returns its page.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// Downloader is implemented by pages that can save downloads to disk.
type Downloader interface {
	// AllowDownloads saves subsequent downloads into dir.
	AllowDownloads(ctx context.Context, dir string) error
}

// IsTransient reports whether err means "not rendered yet" rather than a
// real failure: the element is missing or was replaced by a re-render.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale)
}

// TextOf finds selector under parent and returns its text. A missing
// element yields ErrNotFound.
func TextOf(ctx context.Context, parent Finder, selector string) (string, error) {
	el, err := parent.FindOne(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// Await polls until selector matches and returns the first match.
func Await(ctx context.Context, f Finder, opts wait.Options, selector string) (Element, error) {
	return wait.For(ctx, opts, func(ctx context.Context) (Element, bool, error) {
		el, err := f.FindOne(ctx, selector)
		if IsTransient(err) {
			return nil, false, nil
		}
		return el, err == nil, err
	})
}

// AwaitAll polls until selector matches at least once and returns every match.
func AwaitAll(ctx context.Context, f Finder, opts wait.Options, selector string) ([]Element, error) {
	return wait.For(ctx, opts, func(ctx context.Context) ([]Element, bool, error) {
		els, err := f.FindMany(ctx, selector)
		if IsTransient(err) {
			return nil, false, nil
		}
		return els, err == nil && len(els) > 0, err
	})
}

// Present reports whether selector matches. Missing and stale elements are
// not errors.
func Present(ctx context.Context, f Finder, selector string) (bool, error) {
	els, err := f.FindMany(ctx, selector)
	if IsTransient(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}
