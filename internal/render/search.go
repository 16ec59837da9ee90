package render

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/resilience"
)

// SearchRequest drives a court's case search form.
type SearchRequest struct {
	SearchURL      string
	CaseNumber     string
	InputSelector  string
	ButtonSelector string
	ResultSelector string
}

// Search fills the case number into the search form, submits it, follows
// the first result and returns the URL of the detail page it lands on.
func (c *Client) Search(ctx context.Context, req SearchRequest) (string, error) {
	if req.InputSelector == "" || req.ButtonSelector == "" || req.ResultSelector == "" {
		return "", eris.New("render: search needs input, button and result selectors")
	}
	opts := c.merge(CaptureOptions{WaitSelector: req.InputSelector})

	page, err := c.open(ctx, req.SearchURL, opts)
	if err != nil {
		return "", err
	}
	defer closePage(page, req.SearchURL)

	if err := page.Fill(ctx, req.InputSelector, req.CaseNumber); err != nil {
		return "", eris.Wrapf(err, "render: fill %s", req.InputSelector)
	}
	if err := page.Click(ctx, req.ButtonSelector); err != nil {
		return "", eris.Wrapf(err, "render: click %s", req.ButtonSelector)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.WaitTimeout)
	err = page.WaitFor(waitCtx, req.ResultSelector)
	cancel()
	if err != nil {
		return "", &ElementNotFoundError{URL: req.SearchURL, Selector: req.ResultSelector, Timeout: opts.WaitTimeout, Err: err}
	}

	if err := page.Click(ctx, req.ResultSelector); err != nil {
		return "", eris.Wrapf(err, "render: click %s", req.ResultSelector)
	}
	if err := resilience.Sleep(ctx, opts.SettleDelay); err != nil {
		return "", err
	}

	detail, err := page.Location(ctx)
	if err != nil {
		return "", eris.Wrap(err, "render: read location")
	}
	zap.L().Info("render: search resolved case",
		zap.String("case", req.CaseNumber),
		zap.String("url", detail),
	)
	return detail, nil
}

// DiscoverLinks loads a listing page and returns the links matching
// selector.
func (c *Client) DiscoverLinks(ctx context.Context, listingURL, selector string, opts CaptureOptions) ([]Link, error) {
	opts = c.merge(opts)
	page, err := c.open(ctx, listingURL, opts)
	if err != nil {
		return nil, err
	}
	defer closePage(page, listingURL)

	if err := resilience.Sleep(ctx, opts.SettleDelay); err != nil {
		return nil, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "render: read page html")
	}
	// Links resolve against where the browser ended up, not where it started.
	base := listingURL
	if loc, err := page.Location(ctx); err == nil && loc != "" {
		base = loc
	}
	return ExtractLinks(html, base, selector)
}
