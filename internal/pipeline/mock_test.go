package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/case-extractor/internal/inference"
	"github.com/sells-group/case-extractor/internal/render"
)

// --- Renderer Mock ---

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Capture(ctx context.Context, url string, opts render.CaptureOptions) (*render.Capture, error) {
	args := m.Called(ctx, url, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.Capture), args.Error(1)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, req inference.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// --- Page stub ---

type stubPage struct {
	closed int
}

func (p *stubPage) Navigate(context.Context, string) error     { return nil }
func (p *stubPage) WaitFor(context.Context, string) error      { return nil }
func (p *stubPage) Screenshot(context.Context) ([]byte, error) { return nil, nil }
func (p *stubPage) HTML(context.Context) (string, error)       { return "", nil }
func (p *stubPage) Fill(context.Context, string, string) error { return nil }
func (p *stubPage) Click(context.Context, string) error        { return nil }
func (p *stubPage) Location(context.Context) (string, error)   { return "", nil }
func (p *stubPage) Close() error                               { p.closed++; return nil }

func newCapture(url string, page *stubPage) *render.Capture {
	return &render.Capture{
		Image:      []byte("\x89PNG\r\n"),
		Page:       page,
		URL:        url,
		CapturedAt: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
}

// --- ScreenshotStore stub ---

type failingShots struct{ err error }

func (f failingShots) Save(string, time.Time, []byte) (string, error) { return "", f.err }
