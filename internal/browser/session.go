// Package browser drives a single live browser instance for one automation run.
// Every element lookup returns an explicit outcome instead of failing.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

// RefAttr is the attribute stamped on matched nodes so later actions can address them.
const RefAttr = "data-aa-ref"

// ErrStale is returned when an element handle no longer refers to a node in the page.
var ErrStale = errors.New("element is no longer attached to the page")

// Error describes a failed browser action.
type Error struct {
	Op       string
	Selector string
	Cause    error
}

func (e *Error) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("browser %s %s: %v", e.Op, e.Selector, e.Cause)
	}
	return fmt.Sprintf("browser %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Element is a handle to a node matched by a query, with the state observed at query time.
type Element struct {
	Ref     string            `json:"ref"`
	Tag     string            `json:"tag"`
	Text    string            `json:"text"`
	Value   string            `json:"value"`
	Attrs   map[string]string `json:"attrs"`
	Visible bool              `json:"visible"`
	Enabled bool              `json:"enabled"`
}

// Selector returns a CSS selector addressing this element.
func (e Element) Selector() string {
	return fmt.Sprintf(`[%s="%s"]`, RefAttr, e.Ref)
}

// Attr returns the attribute value or "".
func (e Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// Clickable reports whether the element is visible and enabled.
func (e Element) Clickable() bool {
	return e.Visible && e.Enabled
}

// LabelText returns the lowercased, trimmed text of the element.
func (e Element) LabelText() string {
	return strings.ToLower(strings.TrimSpace(e.Text))
}

// Outcome is the result kind of a single element lookup.
type Outcome int

const (
	// Found means the element was located.
	Found Outcome = iota
	// NotFound means no matching element appeared within the wait.
	NotFound
	// TimedOut means a matching element never became clickable within the wait.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Lookup is the result of FindOne or WaitUntilClickable.
// Err is set only when the wait was interrupted by cancellation or a driver failure.
type Lookup struct {
	Outcome Outcome
	Element Element
	Err     error
}

// OK reports whether the lookup found an element.
func (l Lookup) OK() bool {
	return l.Outcome == Found && l.Err == nil
}

// Session is the set of browser primitives the automation consumes.
// Implementations are not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)

	FindAll(ctx context.Context, selector string) ([]Element, error)
	FindOne(ctx context.Context, selector string, timeout time.Duration) Lookup
	WaitUntilClickable(ctx context.Context, selector string, timeout time.Duration) Lookup

	Type(ctx context.Context, el Element, text string) error
	Click(ctx context.Context, el Element) error
	ScrollIntoView(ctx context.Context, el Element) error
	ScrollToBottom(ctx context.Context) error
	PressEscape(ctx context.Context) error
	SetFiles(ctx context.Context, el Element, paths ...string) error
	Select(ctx context.Context, el Element, option string) error

	// Snapshot stamps the form controls under the first existing root with
	// element refs and returns that root's HTML.
	Snapshot(ctx context.Context, roots ...string) (string, error)

	Cookies(ctx context.Context) ([]types.Cookie, error)
	SetCookies(ctx context.Context, cookies []types.Cookie) error
	ClearCookies(ctx context.Context) error

	Close() error
}
