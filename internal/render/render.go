// Package render drives a browser to load court case pages and capture
// full-page screenshots.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/resilience"
)

// Page is one live browser tab in its own isolated browsing context.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	Fill(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Location(ctx context.Context) (string, error)
	Close() error
}

// Browser hands out fresh pages. Each page must share no cookies or
// storage with any other.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// CaptureOptions bound each phase of a capture.
type CaptureOptions struct {
	WaitSelector string
	NavTimeout   time.Duration
	WaitTimeout  time.Duration
	SettleDelay  time.Duration
}

// DefaultCaptureOptions returns the standard bounds: 30s navigation, 10s
// element wait, 2s settle.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		NavTimeout:  30 * time.Second,
		WaitTimeout: 10 * time.Second,
		SettleDelay: 2 * time.Second,
	}
}

// Capture is a rendered page. The caller owns Page and must close it.
type Capture struct {
	Image      []byte
	Page       Page
	URL        string
	CapturedAt time.Time
}

// NavigationError reports a page that failed to load within its bound.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("render: navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError reports a wait selector that never appeared.
type ElementNotFoundError struct {
	URL      string
	Selector string
	Timeout  time.Duration
	Err      error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("render: element %q not found on %s within %s", e.Selector, e.URL, e.Timeout)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

// AcquireError reports that no browsing context could be created. Unlike
// the other render errors it means the browser itself is unusable.
type AcquireError struct {
	Err error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("render: acquire browsing context: %v", e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// IsFatal reports whether err means no further page can be rendered.
func IsFatal(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae)
}

// Client renders pages through a Browser.
type Client struct {
	browser  Browser
	defaults CaptureOptions
	now      func() time.Time
}

// NewClient creates a render client. Zero fields in defaults take the
// standard bounds.
func NewClient(browser Browser, defaults CaptureOptions) *Client {
	std := DefaultCaptureOptions()
	if defaults.NavTimeout <= 0 {
		defaults.NavTimeout = std.NavTimeout
	}
	if defaults.WaitTimeout <= 0 {
		defaults.WaitTimeout = std.WaitTimeout
	}
	if defaults.SettleDelay < 0 {
		defaults.SettleDelay = 0
	}
	return &Client{browser: browser, defaults: defaults, now: time.Now}
}

// Defaults returns the client's default capture bounds.
func (c *Client) Defaults() CaptureOptions {
	return c.defaults
}

func (c *Client) merge(opts CaptureOptions) CaptureOptions {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = c.defaults.NavTimeout
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = c.defaults.WaitTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = c.defaults.SettleDelay
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = c.defaults.WaitSelector
	}
	return opts
}

// Capture opens a fresh page, loads url, waits for the optional selector,
// lets the page settle and takes a full-page PNG screenshot. On success the
// page is returned open; on any failure it is closed first.
func (c *Client) Capture(ctx context.Context, url string, opts CaptureOptions) (*Capture, error) {
	opts = c.merge(opts)
	log := zap.L().With(zap.String("url", url))

	page, err := c.open(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	if err := resilience.Sleep(ctx, opts.SettleDelay); err != nil {
		closePage(page, url)
		return nil, &NavigationError{URL: url, Err: err}
	}

	img, err := page.Screenshot(ctx)
	if err != nil {
		closePage(page, url)
		return nil, &NavigationError{URL: url, Err: fmt.Errorf("screenshot: %w", err)}
	}

	log.Debug("render: captured page", zap.Int("bytes", len(img)))
	return &Capture{Image: img, Page: page, URL: url, CapturedAt: c.now()}, nil
}

// open acquires a page, navigates and waits for the selector.
func (c *Client) open(ctx context.Context, url string, opts CaptureOptions) (Page, error) {
	page, err := c.browser.NewPage(ctx)
	if err != nil {
		return nil, &AcquireError{Err: err}
	}

	navCtx, cancel := context.WithTimeout(ctx, opts.NavTimeout)
	err = page.Navigate(navCtx, url)
	cancel()
	if err != nil {
		closePage(page, url)
		return nil, &NavigationError{URL: url, Err: err}
	}

	if opts.WaitSelector == "" {
		return page, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.WaitTimeout)
	err = page.WaitFor(waitCtx, opts.WaitSelector)
	cancel()
	if err != nil {
		closePage(page, url)
		if ctx.Err() != nil {
			return nil, &NavigationError{URL: url, Err: ctx.Err()}
		}
		return nil, &ElementNotFoundError{URL: url, Selector: opts.WaitSelector, Timeout: opts.WaitTimeout, Err: err}
	}
	return page, nil
}

func closePage(page Page, url string) {
	if err := page.Close(); err != nil {
		zap.L().Debug("render: close page", zap.String("url", url), zap.Error(err))
	}
}
