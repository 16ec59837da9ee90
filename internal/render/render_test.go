package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	mu sync.Mutex

	navigateErr   error
	waitBlocks    bool
	waitErr       error
	screenshotErr error
	html          string
	location      string

	navigated []string
	filled    map[string]string
	clicked   []string
	closed    int
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	if p.location == "" {
		p.location = url
	}
	return p.navigateErr
}

func (p *fakePage) WaitFor(ctx context.Context, _ string) error {
	if p.waitBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.waitErr
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return []byte("\x89PNG"), nil
}

func (p *fakePage) HTML(context.Context) (string, error) { return p.html, nil }

func (p *fakePage) Fill(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filled == nil {
		p.filled = map[string]string{}
	}
	p.filled[selector] = text
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) { return p.location, nil }

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

type fakeBrowser struct {
	page    *fakePage
	openErr error
	opened  int
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened++
	return b.page, nil
}

func (b *fakeBrowser) Close() error { return nil }

func fastOptions() CaptureOptions {
	return CaptureOptions{
		NavTimeout:  time.Second,
		WaitTimeout: 50 * time.Millisecond,
		SettleDelay: time.Millisecond,
	}
}

func TestCapture_Success(t *testing.T) {
	page := &fakePage{}
	c := NewClient(&fakeBrowser{page: page}, fastOptions())

	got, err := c.Capture(context.Background(), "https://court.example/case/1", CaptureOptions{WaitSelector: "#main"})
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), got.Image)
	assert.Equal(t, "https://court.example/case/1", got.URL)
	assert.False(t, got.CapturedAt.IsZero())
	assert.Same(t, page, got.Page)
	assert.Equal(t, 0, page.closed, "page stays open for the caller")
	assert.Equal(t, []string{"https://court.example/case/1"}, page.navigated)
}

func TestCapture_AcquireFailureIsFatal(t *testing.T) {
	c := NewClient(&fakeBrowser{openErr: errors.New("browser crashed")}, fastOptions())

	_, err := c.Capture(context.Background(), "https://court.example", CaptureOptions{})
	require.Error(t, err)
	var ae *AcquireError
	assert.True(t, errors.As(err, &ae))
	assert.True(t, IsFatal(err))
}

func TestCapture_NavigationFailureClosesPage(t *testing.T) {
	page := &fakePage{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	c := NewClient(&fakeBrowser{page: page}, fastOptions())

	_, err := c.Capture(context.Background(), "https://nowhere.invalid", CaptureOptions{})
	require.Error(t, err)
	var ne *NavigationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "https://nowhere.invalid", ne.URL)
	assert.False(t, IsFatal(err))
	assert.Equal(t, 1, page.closed)
}

func TestCapture_WaitSelectorTimesOut(t *testing.T) {
	page := &fakePage{waitBlocks: true}
	c := NewClient(&fakeBrowser{page: page}, fastOptions())

	start := time.Now()
	_, err := c.Capture(context.Background(), "https://court.example", CaptureOptions{WaitSelector: ".never"})
	elapsed := time.Since(start)

	require.Error(t, err)
	var enf *ElementNotFoundError
	require.True(t, errors.As(err, &enf))
	assert.Equal(t, ".never", enf.Selector)
	assert.Equal(t, 50*time.Millisecond, enf.Timeout)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 1, page.closed)
}

func TestCapture_CancelledDuringWait(t *testing.T) {
	page := &fakePage{waitBlocks: true}
	c := NewClient(&fakeBrowser{page: page}, CaptureOptions{WaitTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.Capture(ctx, "https://court.example", CaptureOptions{WaitSelector: "#x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var enf *ElementNotFoundError
	assert.False(t, errors.As(err, &enf))
	assert.Equal(t, 1, page.closed)
}

func TestCapture_ScreenshotFailureClosesPage(t *testing.T) {
	page := &fakePage{screenshotErr: errors.New("target closed")}
	c := NewClient(&fakeBrowser{page: page}, fastOptions())

	_, err := c.Capture(context.Background(), "https://court.example", CaptureOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screenshot")
	assert.Equal(t, 1, page.closed)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(&fakeBrowser{}, CaptureOptions{})
	d := c.Defaults()
	assert.Equal(t, 30*time.Second, d.NavTimeout)
	assert.Equal(t, 10*time.Second, d.WaitTimeout)

	merged := c.merge(CaptureOptions{WaitTimeout: 3 * time.Second})
	assert.Equal(t, 3*time.Second, merged.WaitTimeout)
	assert.Equal(t, 30*time.Second, merged.NavTimeout)
}

func TestSearch(t *testing.T) {
	page := &fakePage{location: "https://court.example/detail?id=9"}
	c := NewClient(&fakeBrowser{page: page}, fastOptions())

	got, err := c.Search(context.Background(), SearchRequest{
		SearchURL:      "https://court.example/search",
		CaseNumber:     "2024-CF-1",
		InputSelector:  "#case",
		ButtonSelector: "#go",
		ResultSelector: "a.result",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://court.example/detail?id=9", got)
	assert.Equal(t, "2024-CF-1", page.filled["#case"])
	assert.Equal(t, []string{"#go", "a.result"}, page.clicked)
	assert.Equal(t, 1, page.closed)
}

func TestSearch_NoResult(t *testing.T) {
	page := &fakePage{}
	c := NewClient(&fakeBrowser{page: page}, fastOptions())
	page.waitErr = errors.New("timeout")

	_, err := c.Search(context.Background(), SearchRequest{
		SearchURL:      "https://court.example/search",
		CaseNumber:     "x",
		InputSelector:  "#case",
		ButtonSelector: "#go",
		ResultSelector: "a.result",
	})
	require.Error(t, err)
	var enf *ElementNotFoundError
	assert.True(t, errors.As(err, &enf))
	assert.Equal(t, 1, page.closed)
}

func TestSearch_MissingSelectors(t *testing.T) {
	c := NewClient(&fakeBrowser{page: &fakePage{}}, fastOptions())
	_, err := c.Search(context.Background(), SearchRequest{SearchURL: "https://x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selectors")
}

func TestDiscoverLinks(t *testing.T) {
	page := &fakePage{
		location: "https://court.example/cases/list",
		html: `<html><body>
			<a class="case" href="detail?id=1">Case 1</a>
			<a class="case" href="/cases/detail?id=2">Case 2</a>
			<a class="case" href="detail?id=1">Case 1 again</a>
			<a class="other" href="/about">About</a>
		</body></html>`,
	}
	c := NewClient(&fakeBrowser{page: page}, fastOptions())

	links, err := c.DiscoverLinks(context.Background(), "https://court.example/cases/list", "a.case", CaptureOptions{})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "https://court.example/cases/detail?id=1", links[0].URL)
	assert.Equal(t, "Case 1", links[0].Text)
	assert.Equal(t, "https://court.example/cases/detail?id=2", links[1].URL)
	assert.Equal(t, 1, page.closed)
}
