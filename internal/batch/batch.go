// Package batch runs the case pipeline over a list of cases, one at a time,
// with pacing between requests.
package batch

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/case-extractor/internal/model"
	"github.com/sells-group/case-extractor/internal/pipeline"
	"github.com/sells-group/case-extractor/internal/render"
	"github.com/sells-group/case-extractor/internal/resilience"
)

// Runner extracts one case. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, url, caseNumber, waitSelector string) (*model.Extraction, error)
}

// Options control pacing and retry for a batch.
type Options struct {
	// WaitSelector is passed to every pipeline run.
	WaitSelector string

	// Delay separates consecutive cases. No delay follows the last case.
	Delay time.Duration

	// BatchSize and BatchPause add a longer pause after every BatchSize
	// cases. The pause replaces Delay when it is longer.
	BatchSize  int
	BatchPause time.Duration

	// RequestsPerMinute caps the case start rate. Zero means no cap.
	RequestsPerMinute int

	// Retry bounds re-runs of cases that failed transiently at the
	// inference stage. The zero value runs each case once.
	Retry resilience.RetryConfig

	// OnOutcome is called after each case finishes, in input order.
	OnOutcome func(model.CaseOutcome)
}

// Result is everything a batch produced. Records holds one entry per
// succeeded case, in input order.
type Result struct {
	Records  []*model.CaseRecord
	Outcomes []model.CaseOutcome
	Summary  model.RunSummary
}

func (r *Result) add(o model.CaseOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Summary.Attempted++
	if o.State == model.CaseStateSucceeded {
		r.Summary.Succeeded++
		r.Records = append(r.Records, o.Record)
		return
	}
	r.Summary.Failed++
}

// Orchestrator drives a batch. It never runs two cases at once.
type Orchestrator struct {
	runner  Runner
	opts    Options
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// New creates an Orchestrator.
func New(runner Runner, opts Options) *Orchestrator {
	o := &Orchestrator{
		runner: runner,
		opts:   opts,
		sleep:  resilience.Sleep,
		now:    time.Now,
	}
	if opts.RequestsPerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return o
}

// Run processes cases in order. A failed case is recorded and skipped. The
// batch stops early only when the browser cannot hand out pages or ctx is
// done; the partial result is returned with the error.
func (o *Orchestrator) Run(ctx context.Context, cases []model.BatchCase) (*Result, error) {
	res := &Result{}
	log := zap.L().With(zap.Int("cases", len(cases)))
	log.Info("batch: starting")

	for i, c := range cases {
		if i > 0 {
			if err := o.sleep(ctx, o.gap(i)); err != nil {
				return o.abort(res, err)
			}
		}
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return o.abort(res, err)
			}
		}

		zap.L().Info("batch: processing case",
			zap.Int("index", i+1),
			zap.Int("total", len(cases)),
			zap.String("case", c.CaseNumber),
		)
		out := o.runCase(ctx, i, c)
		res.add(out)
		if o.opts.OnOutcome != nil {
			o.opts.OnOutcome(out)
		}

		if out.Err != nil && (render.IsFatal(out.Err) || ctx.Err() != nil) {
			return o.abort(res, out.Err)
		}
	}

	log.Info("batch: complete",
		zap.Int("attempted", res.Summary.Attempted),
		zap.Int("succeeded", res.Summary.Succeeded),
		zap.Int("failed", res.Summary.Failed),
	)
	return res, nil
}

// gap returns the pause before case i, given i cases have run.
func (o *Orchestrator) gap(i int) time.Duration {
	d := o.opts.Delay
	if o.opts.BatchSize > 0 && i%o.opts.BatchSize == 0 && o.opts.BatchPause > d {
		zap.L().Info("batch: pausing between batches",
			zap.Int("completed", i),
			zap.Duration("pause", o.opts.BatchPause),
		)
		d = o.opts.BatchPause
	}
	return d
}

func (o *Orchestrator) abort(res *Result, err error) (*Result, error) {
	zap.L().Error("batch: aborted",
		zap.Int("attempted", res.Summary.Attempted),
		zap.Int("succeeded", res.Summary.Succeeded),
		zap.Error(err),
	)
	return res, eris.Wrap(err, "batch: aborted")
}

func (o *Orchestrator) runCase(ctx context.Context, index int, c model.BatchCase) model.CaseOutcome {
	out := model.CaseOutcome{
		Index:     index,
		Case:      c,
		State:     model.CaseStateRunning,
		StartedAt: o.now(),
	}

	var (
		ext *model.Extraction
		err error
	)
	switch {
	case strings.TrimSpace(c.CaseNumber) == "":
		err = &pipeline.Failure{Stage: model.StageRender, URL: c.URL, Err: eris.New("case has no case number")}
	case c.URL == "":
		err = &pipeline.Failure{Stage: model.StageRender, CaseNumber: c.CaseNumber, Err: eris.New("case has no url")}
	default:
		cfg := o.opts.Retry
		cfg.ShouldRetry = retryable
		cfg.OnRetry = resilience.RetryLogger(c.CaseNumber, c.URL)
		ext, err = resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.Extraction, error) {
			out.Attempts++
			return o.runner.Run(ctx, c.URL, c.CaseNumber, o.opts.WaitSelector)
		})
	}
	out.FinishedAt = o.now()

	if err != nil {
		out.State = model.CaseStateFailed
		out.Stage = pipeline.StageOf(err)
		out.Error = err.Error()
		out.ErrorType = resilience.ClassifyError(err)
		out.Err = err
		zap.L().Warn("batch: case failed, continuing",
			zap.String("case", c.CaseNumber),
			zap.String("stage", string(out.Stage)),
			zap.Error(err),
		)
		return out
	}

	out.State = model.CaseStateSucceeded
	out.Record = ext.Record
	out.ScreenshotPath = ext.ScreenshotPath
	out.Degraded = ext.Degraded
	return out
}

// retryable accepts only transient inference failures. Render failures are
// re-run by replaying the run, not in place.
func retryable(err error) bool {
	return pipeline.StageOf(err) == model.StageInference && resilience.IsTransient(err)
}
