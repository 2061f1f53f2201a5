package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

const pollInterval = 250 * time.Millisecond

// Chrome is a Session backed by a chromedp-controlled Chrome process.
type Chrome struct {
	cfg    Config
	log    logrus.FieldLogger
	tabCtx context.Context

	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

var _ Session = (*Chrome)(nil)

// Launch starts a browser process and opens one tab.
// The browser lives until Close is called or ctx ends.
func Launch(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Chrome, error) {
	ua := cfg.UserAgent()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(ua),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run starts the process.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, &Error{Op: "launch", Cause: err}
	}

	log.WithField("user_agent", ua).Info("Browser launched")
	return &Chrome{
		cfg:         cfg,
		log:         log,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes actions against the tab, bounded by the action timeout and ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(c.tabCtx, c.cfg.actionTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// onElement runs actions against a previously matched element, reporting ErrStale
// when the node has been detached.
func (c *Chrome) onElement(ctx context.Context, op string, el Element, actions ...chromedp.Action) error {
	sel := el.Selector()
	var exists bool
	if err := c.run(ctx, chromedp.Evaluate(jsArgs(existsScript, sel), &exists)); err != nil {
		return &Error{Op: op, Selector: sel, Cause: err}
	}
	if !exists {
		return &Error{Op: op, Selector: sel, Cause: ErrStale}
	}
	if err := c.run(ctx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrStale
		}
		return &Error{Op: op, Selector: sel, Cause: err}
	}
	return nil
}

// Navigate loads url and waits a paced interval for the page to settle.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return &Error{Op: "navigate", Selector: url, Cause: err}
	}
	c.log.WithField("url", url).Debug("Navigated")
	return Pause(ctx, c.cfg.Pacing.Navigation)
}

// CurrentURL returns the tab's location.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := c.run(ctx, chromedp.Location(&u)); err != nil {
		return "", &Error{Op: "location", Cause: err}
	}
	return u, nil
}

// FindAll returns every node matching selector, possibly none.
func (c *Chrome) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var out []Element
	if err := c.run(ctx, chromedp.Evaluate(jsArgs(findAllScript, selector), &out)); err != nil {
		return nil, &Error{Op: "query", Selector: selector, Cause: err}
	}
	return out, nil
}

// FindOne waits up to timeout for a visible match.
func (c *Chrome) FindOne(ctx context.Context, selector string, timeout time.Duration) Lookup {
	return c.poll(ctx, selector, timeout, NotFound, func(e Element) bool { return e.Visible })
}

// WaitUntilClickable waits up to timeout for a visible, enabled match.
func (c *Chrome) WaitUntilClickable(ctx context.Context, selector string, timeout time.Duration) Lookup {
	return c.poll(ctx, selector, timeout, TimedOut, Element.Clickable)
}

func (c *Chrome) poll(ctx context.Context, selector string, timeout time.Duration, miss Outcome, accept func(Element) bool) Lookup {
	deadline := time.Now().Add(timeout)
	for {
		els, err := c.FindAll(ctx, selector)
		if err != nil && ctx.Err() != nil {
			return Lookup{Outcome: miss, Err: ctx.Err()}
		}
		for _, e := range els {
			if accept(e) {
				return Lookup{Outcome: Found, Element: e}
			}
		}
		if time.Now().After(deadline) {
			return Lookup{Outcome: miss}
		}
		select {
		case <-ctx.Done():
			return Lookup{Outcome: miss, Err: ctx.Err()}
		case <-time.After(pollInterval):
		}
	}
}

// Type clears the element and enters text one character at a time.
func (c *Chrome) Type(ctx context.Context, el Element, text string) error {
	if err := c.onElement(ctx, "type", el,
		chromedp.Focus(el.Selector(), chromedp.ByQuery),
		chromedp.SetValue(el.Selector(), "", chromedp.ByQuery),
	); err != nil {
		return err
	}
	for _, r := range text {
		if err := c.onElement(ctx, "type", el, chromedp.SendKeys(el.Selector(), string(r), chromedp.ByQuery)); err != nil {
			return err
		}
		if err := Pause(ctx, c.cfg.Pacing.Keystroke); err != nil {
			return err
		}
	}
	return nil
}

// Click clicks the element.
func (c *Chrome) Click(ctx context.Context, el Element) error {
	return c.onElement(ctx, "click", el, chromedp.Click(el.Selector(), chromedp.ByQuery))
}

// ScrollIntoView scrolls the element into the viewport.
func (c *Chrome) ScrollIntoView(ctx context.Context, el Element) error {
	return c.onElement(ctx, "scroll", el, chromedp.ScrollIntoView(el.Selector(), chromedp.ByQuery))
}

// ScrollToBottom scrolls the page to its end, which triggers lazy loading.
func (c *Chrome) ScrollToBottom(ctx context.Context) error {
	var ok bool
	if err := c.run(ctx, chromedp.Evaluate(scrollBottomScript, &ok)); err != nil {
		return &Error{Op: "scroll", Cause: err}
	}
	return nil
}

// PressEscape sends an Escape key event to the focused page.
func (c *Chrome) PressEscape(ctx context.Context) error {
	if err := c.run(ctx, chromedp.KeyEvent(kb.Escape)); err != nil {
		return &Error{Op: "escape", Cause: err}
	}
	return nil
}

// SetFiles assigns local file paths to a file input without opening a picker.
func (c *Chrome) SetFiles(ctx context.Context, el Element, paths ...string) error {
	return c.onElement(ctx, "upload", el, chromedp.SetUploadFiles(el.Selector(), paths, chromedp.ByQuery))
}

// Select chooses the option of a select element whose text equals option.
func (c *Chrome) Select(ctx context.Context, el Element, option string) error {
	var res string
	if err := c.run(ctx, chromedp.Evaluate(jsArgs(selectScript, el.Selector(), option), &res)); err != nil {
		return &Error{Op: "select", Selector: el.Selector(), Cause: err}
	}
	switch res {
	case "ok":
		return nil
	case "stale":
		return &Error{Op: "select", Selector: el.Selector(), Cause: ErrStale}
	default:
		return &Error{Op: "select", Selector: el.Selector(), Cause: fmt.Errorf("no option %q", option)}
	}
}

// Snapshot returns the stamped HTML of the first root that exists.
func (c *Chrome) Snapshot(ctx context.Context, roots ...string) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.Evaluate(jsArgs(snapshotScript, roots), &html)); err != nil {
		return "", &Error{Op: "snapshot", Selector: strings.Join(roots, ", "), Cause: err}
	}
	return html, nil
}

// Cookies returns every cookie in the browser.
func (c *Chrome) Cookies(ctx context.Context) ([]types.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, &Error{Op: "get cookies", Cause: err}
	}

	cookies := make([]types.Cookie, 0, len(raw))
	for _, rc := range raw {
		cookies = append(cookies, types.Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Expires:  rc.Expires,
			Secure:   rc.Secure,
			HTTPOnly: rc.HTTPOnly,
			SameSite: string(rc.SameSite),
		})
	}
	return cookies, nil
}

// SetCookies installs cookies. The first failure aborts the whole call.
func (c *Chrome) SetCookies(ctx context.Context, cookies []types.Cookie) error {
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ck := range cookies {
			set := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(ck.Path).
				WithSecure(ck.Secure).
				WithHTTPOnly(ck.HTTPOnly)
			if ck.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
				set = set.WithExpires(&exp)
			}
			switch strings.ToLower(ck.SameSite) {
			case "strict":
				set = set.WithSameSite(network.CookieSameSiteStrict)
			case "lax":
				set = set.WithSameSite(network.CookieSameSiteLax)
			case "none":
				set = set.WithSameSite(network.CookieSameSiteNone)
			}
			if err := set.Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", ck.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return &Error{Op: "set cookies", Cause: err}
	}
	return nil
}

// ClearCookies removes every cookie from the browser.
func (c *Chrome) ClearCookies(ctx context.Context) error {
	if err := c.run(ctx, network.ClearBrowserCookies()); err != nil {
		return &Error{Op: "clear cookies", Cause: err}
	}
	return nil
}

// Close shuts the tab and the browser process. It is safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.cancelTab()
		c.cancelAlloc()
		c.log.Info("Browser closed")
	})
	return nil
}
