// Package pipeline runs one court case end to end: render the page, keep
// the screenshot, ask the vision model, and map its reply onto a record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/inference"
	"github.com/sells-group/case-extractor/internal/model"
	"github.com/sells-group/case-extractor/internal/normalize"
	"github.com/sells-group/case-extractor/internal/render"
)

// Renderer captures a page. *render.Client satisfies it.
type Renderer interface {
	Capture(ctx context.Context, url string, opts render.CaptureOptions) (*render.Capture, error)
}

// Failure reports the case and stage a pipeline run stopped in.
type Failure struct {
	Stage      model.Stage
	CaseNumber string
	URL        string
	Err        error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pipeline: case %s: %s: %v", f.CaseNumber, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// StageOf returns the stage err failed in, or "" when err is not a
// *Failure.
func StageOf(err error) model.Stage {
	var f *Failure
	if errors.As(err, &f) {
		return f.Stage
	}
	return ""
}

// Options tune every run of a Pipeline.
type Options struct {
	// Capture holds the per-court render bounds. The wait selector passed to
	// Run overrides Capture.WaitSelector.
	Capture      render.CaptureOptions
	ExtraContext string
	CustomFields []string
}

// Pipeline extracts one case at a time.
type Pipeline struct {
	renderer  Renderer
	extractor inference.Extractor
	shots     ScreenshotStore
	opts      Options
	now       func() time.Time
}

// New creates a Pipeline.
func New(renderer Renderer, extractor inference.Extractor, shots ScreenshotStore, opts Options) *Pipeline {
	return &Pipeline{
		renderer:  renderer,
		extractor: extractor,
		shots:     shots,
		opts:      opts,
		now:       time.Now,
	}
}

// Run extracts the case at url. No inference call is made unless the page
// rendered and its screenshot was saved. The page is closed on every path.
func (p *Pipeline) Run(ctx context.Context, url, caseNumber, waitSelector string) (*model.Extraction, error) {
	log := zap.L().With(zap.String("case", caseNumber), zap.String("url", url))
	fail := func(stage model.Stage, err error) error {
		log.Error("pipeline: case failed", zap.String("stage", string(stage)), zap.Error(err))
		return &Failure{Stage: stage, CaseNumber: caseNumber, URL: url, Err: err}
	}

	capOpts := p.opts.Capture
	if waitSelector != "" {
		capOpts.WaitSelector = waitSelector
	}

	log.Info("pipeline: rendering page")
	capture, err := p.renderer.Capture(ctx, url, capOpts)
	if err != nil {
		return nil, fail(model.StageRender, err)
	}
	defer func() {
		if cerr := capture.Page.Close(); cerr != nil {
			log.Debug("pipeline: close page", zap.Error(cerr))
		}
	}()

	shotPath, err := p.shots.Save(caseNumber, capture.CapturedAt, capture.Image)
	if err != nil {
		return nil, fail(model.StagePersist, err)
	}
	log.Debug("pipeline: screenshot saved", zap.String("path", shotPath))

	start := p.now()
	text, err := p.extractor.Extract(ctx, inference.Request{
		Image:        capture.Image,
		MediaType:    "image/png",
		CaseNumber:   caseNumber,
		ExtraContext: p.opts.ExtraContext,
		CustomFields: p.opts.CustomFields,
	})
	if err != nil {
		return nil, fail(model.StageInference, err)
	}

	payload := normalize.Normalize(text)
	out := &model.Extraction{
		Record:         BuildRecord(caseNumber, url, payload, p.now()),
		ScreenshotPath: shotPath,
		Degraded:       normalize.IsSentinel(payload),
		SchemaWarnings: normalize.Validate(payload),
	}

	switch {
	case out.Degraded:
		log.Warn("pipeline: model reply was not JSON, keeping raw response",
			zap.Any("error", payload[normalize.KeyError]))
	case len(out.SchemaWarnings) > 0:
		log.Warn("pipeline: payload schema warnings", zap.Strings("warnings", out.SchemaWarnings))
	}
	log.Info("pipeline: case extracted",
		zap.Int("fields_found", out.Record.FieldsFound()),
		zap.Duration("inference", p.now().Sub(start)),
	)
	return out, nil
}
