// Package browsertest provides a scripted in-memory browser.Session for tests.
package browsertest

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// Fake is a browser.Session whose page state is a map of selector to elements.
// Hooks let tests react to clicks and navigation by rewriting that state.
type Fake struct {
	mu sync.Mutex

	URL       string
	elements  map[string][]browser.Element
	snapshots []string
	snapIdx   int
	jar       []types.Cookie

	// Errors injected into the matching operations.
	NavigateErr   error
	SetCookiesErr error
	TypeErr       map[string]error
	ClickErr      map[string]error

	// Hooks run after the operation is recorded, with the lock released.
	OnClick          func(f *Fake, el browser.Element) error
	OnNavigate       func(f *Fake, url string) error
	OnScrollToBottom func(f *Fake)

	Navigations     []string
	Clicks          []browser.Element
	Typed           map[string]string
	Selected        map[string]string
	Files           map[string][]string
	Escapes         int
	ScrollsToBottom int
	Cleared         int
	Closed          bool
}

var _ browser.Session = (*Fake)(nil)

// New returns an empty page.
func New() *Fake {
	return &Fake{
		elements: make(map[string][]browser.Element),
		TypeErr:  make(map[string]error),
		ClickErr: make(map[string]error),
		Typed:    make(map[string]string),
		Selected: make(map[string]string),
		Files:    make(map[string][]string),
	}
}

// El builds a visible, enabled element.
func El(ref, text string) browser.Element {
	return browser.Element{Ref: ref, Text: text, Visible: true, Enabled: true, Attrs: map[string]string{}}
}

// Set replaces the elements matched by selector.
func (f *Fake) Set(selector string, els ...browser.Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[selector] = els
}

// Append adds elements matched by selector.
func (f *Fake) Append(selector string, els ...browser.Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[selector] = append(f.elements[selector], els...)
}

// SetSnapshots queues HTML returned by successive Snapshot calls; the last one repeats.
func (f *Fake) SetSnapshots(html ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = html
	f.snapIdx = 0
}

// SetURL sets the current location.
func (f *Fake) SetURL(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.URL = u
}

// Jar returns the installed cookies.
func (f *Fake) Jar() []types.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Cookie(nil), f.jar...)
}

// SetJar replaces the installed cookies.
func (f *Fake) SetJar(cookies []types.Cookie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jar = append([]types.Cookie(nil), cookies...)
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	f.Navigations = append(f.Navigations, url)
	if f.NavigateErr != nil {
		err := f.NavigateErr
		f.mu.Unlock()
		return err
	}
	f.URL = url
	hook := f.OnNavigate
	f.mu.Unlock()
	if hook != nil {
		return hook(f, url)
	}
	return ctx.Err()
}

func (f *Fake) CurrentURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, nil
}

func (f *Fake) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Element(nil), f.elements[selector]...), nil
}

func (f *Fake) FindOne(ctx context.Context, selector string, _ time.Duration) browser.Lookup {
	els, err := f.FindAll(ctx, selector)
	if err != nil {
		return browser.Lookup{Outcome: browser.NotFound, Err: err}
	}
	for _, e := range els {
		if e.Visible {
			return browser.Lookup{Outcome: browser.Found, Element: e}
		}
	}
	return browser.Lookup{Outcome: browser.NotFound}
}

func (f *Fake) WaitUntilClickable(ctx context.Context, selector string, _ time.Duration) browser.Lookup {
	els, err := f.FindAll(ctx, selector)
	if err != nil {
		return browser.Lookup{Outcome: browser.TimedOut, Err: err}
	}
	for _, e := range els {
		if e.Clickable() {
			return browser.Lookup{Outcome: browser.Found, Element: e}
		}
	}
	return browser.Lookup{Outcome: browser.TimedOut}
}

func (f *Fake) Type(_ context.Context, el browser.Element, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.TypeErr[el.Ref]; err != nil {
		return err
	}
	f.Typed[el.Ref] = text
	return nil
}

func (f *Fake) Click(_ context.Context, el browser.Element) error {
	f.mu.Lock()
	if err := f.ClickErr[el.Ref]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.Clicks = append(f.Clicks, el)
	hook := f.OnClick
	f.mu.Unlock()
	if hook != nil {
		return hook(f, el)
	}
	return nil
}

func (f *Fake) ScrollIntoView(context.Context, browser.Element) error {
	return nil
}

func (f *Fake) ScrollToBottom(context.Context) error {
	f.mu.Lock()
	f.ScrollsToBottom++
	hook := f.OnScrollToBottom
	f.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *Fake) PressEscape(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Escapes++
	return nil
}

func (f *Fake) SetFiles(_ context.Context, el browser.Element, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files[el.Ref] = paths
	return nil
}

func (f *Fake) Select(_ context.Context, el browser.Element, option string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Selected[el.Ref] = option
	return nil
}

func (f *Fake) Snapshot(context.Context, ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return "", nil
	}
	html := f.snapshots[f.snapIdx]
	if f.snapIdx < len(f.snapshots)-1 {
		f.snapIdx++
	}
	return html, nil
}

func (f *Fake) Cookies(context.Context) ([]types.Cookie, error) {
	return f.Jar(), nil
}

func (f *Fake) SetCookies(_ context.Context, cookies []types.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetCookiesErr != nil {
		return f.SetCookiesErr
	}
	f.jar = append(f.jar, cookies...)
	return nil
}

func (f *Fake) ClearCookies(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jar = nil
	f.Cleared++
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// ClickedRefs returns the refs of every clicked element in order.
func (f *Fake) ClickedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]string, len(f.Clicks))
	for i, c := range f.Clicks {
		refs[i] = c.Ref
	}
	return refs
}

// IsClosed reports whether Close was called.
func (f *Fake) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
