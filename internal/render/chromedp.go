package render

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/resilience"
)

// ChromeOptions configure the Chrome process.
type ChromeOptions struct {
	Headless  bool
	SlowMo    time.Duration
	Width     int
	Height    int
	ExecPath  string
	UserAgent string
}

// ChromeBrowser is a Browser backed by a local Chrome via the DevTools
// protocol. Every page gets its own incognito-style browser context.
type ChromeBrowser struct {
	opts          ChromeOptions
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeBrowser launches Chrome and returns once it accepts commands.
func NewChromeBrowser(ctx context.Context, opts ChromeOptions) (*ChromeBrowser, error) {
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			zap.S().Debugf("chromedp: "+format, args...)
		}),
	)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "render: launch chrome")
	}

	zap.L().Info("render: chrome started",
		zap.Bool("headless", opts.Headless),
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
	)
	return &ChromeBrowser{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a tab in a fresh browser context.
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())

	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(b.opts.Width), int64(b.opts.Height)),
		cdppage.SetLifecycleEventsEnabled(true),
	)
	if err != nil {
		cancel()
		return nil, eris.Wrap(err, "render: open tab")
	}

	p := &chromePage{ctx: tabCtx, cancel: cancel, slowMo: b.opts.SlowMo}
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		p.mainFrame = cdp.FrameID(c.Target.TargetID)
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)
	return p, nil
}

// Close shuts down Chrome.
func (b *ChromeBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil && !eris.Is(err, context.Canceled) {
		return eris.Wrap(err, "render: close chrome")
	}
	return nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	slowMo    time.Duration
	mainFrame cdp.FrameID

	mu      sync.Mutex
	started bool
	idle    chan struct{}
}

// onEvent watches main-frame lifecycle events so Navigate can wait for
// network idle of the new document rather than the previous one.
func (p *chromePage) onEvent(ev any) {
	e, ok := ev.(*cdppage.EventLifecycleEvent)
	if !ok {
		return
	}
	if p.mainFrame != "" && e.FrameID != p.mainFrame {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Name {
	case "init":
		p.started = true
	case "networkIdle":
		if p.started && p.idle != nil {
			close(p.idle)
			p.idle = nil
		}
	}
}

// run executes actions on the tab, bounded by ctx's deadline and
// cancellation as well as the tab's own lifetime.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		defer cancelDL()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return err
	}
	if p.slowMo > 0 {
		return resilience.Sleep(ctx, p.slowMo)
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	idle := make(chan struct{})
	p.mu.Lock()
	p.started = false
	p.idle = idle
	p.mu.Unlock()

	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "waiting for network idle")
	}
}

func (p *chromePage) WaitFor(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 yields PNG.
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Fill(ctx context.Context, selector, text string) error {
	return p.run(ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
