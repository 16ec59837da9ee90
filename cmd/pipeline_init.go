package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/batch"
	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/inference"
	"github.com/sells-group/case-extractor/internal/pipeline"
	"github.com/sells-group/case-extractor/internal/render"
	"github.com/sells-group/case-extractor/internal/resilience"
	anthropicpkg "github.com/sells-group/case-extractor/pkg/anthropic"
	"github.com/sells-group/case-extractor/pkg/lmstudio"
)

// pipelineEnv holds the browser, render client and pipeline needed by the
// extract/batch/search commands.
type pipelineEnv struct {
	Browser  *render.ChromeBrowser
	Render   *render.Client
	Pipeline *pipeline.Pipeline
	Court    *config.CourtProfile
}

// Close releases the browser process.
func (pe *pipelineEnv) Close() {
	if pe.Browser != nil {
		if err := pe.Browser.Close(); err != nil {
			zap.L().Warn("close browser", zap.Error(err))
		}
	}
}

// initPipeline launches the browser and builds the extraction pipeline for
// the given court profile, which may be nil. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, court *config.CourtProfile) (*pipelineEnv, error) {
	if err := cfg.Validate("extract"); err != nil {
		return nil, err
	}

	extractor, err := initExtractor()
	if err != nil {
		return nil, err
	}

	browser, err := initBrowser(ctx)
	if err != nil {
		return nil, err
	}
	renderClient := render.NewClient(browser, renderDefaults(cfg.Browser))

	opts := pipeline.Options{
		Capture:      captureOptions(court),
		ExtraContext: cfg.Inference.ExtraContext,
	}
	if court != nil {
		opts.CustomFields = court.CustomFields
	}

	shots := pipeline.DirScreenshots{Dir: screenshotsDir(court)}
	p := pipeline.New(renderClient, extractor, shots, opts)

	zap.L().Info("pipeline ready",
		zap.String("provider", cfg.Inference.Provider),
		zap.String("screenshots", shots.Dir),
		zap.String("court", courtKey(court)),
	)

	return &pipelineEnv{
		Browser:  browser,
		Render:   renderClient,
		Pipeline: p,
		Court:    court,
	}, nil
}

func initBrowser(ctx context.Context) (*render.ChromeBrowser, error) {
	b := cfg.Browser
	return render.NewChromeBrowser(ctx, render.ChromeOptions{
		Headless:  b.Headless,
		SlowMo:    time.Duration(b.SlowMoMs) * time.Millisecond,
		Width:     b.ViewportWidth,
		Height:    b.ViewportHeight,
		ExecPath:  b.ExecPath,
		UserAgent: b.UserAgent,
	})
}

// initExtractor builds the configured inference backend behind a circuit
// breaker.
func initExtractor() (inference.Extractor, error) {
	settings := inference.Settings{
		Model:       cfg.Inference.Model,
		MaxTokens:   cfg.Inference.MaxTokens,
		Temperature: cfg.Inference.Temperature,
	}

	var ext inference.Extractor
	switch cfg.Inference.Provider {
	case inference.ProviderOpenAI:
		ext = inference.NewOpenAI(initLMStudio(), settings)
	case inference.ProviderAnthropic:
		settings.Model = cfg.Anthropic.Model
		ext = inference.NewAnthropic(anthropicpkg.NewClient(cfg.Anthropic.Key), settings)
	default:
		return nil, eris.Errorf("unsupported inference provider: %s", cfg.Inference.Provider)
	}

	cb := resilience.NewCircuitBreaker(resilience.FromInferenceConfig(cfg.Inference))
	return inference.WithBreaker(ext, cb, cfg.Inference.Provider), nil
}

func initLMStudio() lmstudio.Client {
	return lmstudio.NewClient(
		lmstudio.WithBaseURL(cfg.Inference.BaseURL),
		lmstudio.WithModel(cfg.Inference.Model),
		lmstudio.WithAPIKey(cfg.Inference.APIKey),
		lmstudio.WithTimeout(cfg.Inference.Timeout()),
	)
}

// renderDefaults maps browser settings onto capture bounds.
func renderDefaults(b config.BrowserConfig) render.CaptureOptions {
	return render.CaptureOptions{
		NavTimeout:  time.Duration(b.NavTimeoutMs) * time.Millisecond,
		WaitTimeout: time.Duration(b.WaitTimeoutMs) * time.Millisecond,
		SettleDelay: time.Duration(b.SettleDelayMs) * time.Millisecond,
	}
}

// captureOptions layers a court profile's wait settings over the browser
// defaults.
func captureOptions(court *config.CourtProfile) render.CaptureOptions {
	opts := renderDefaults(cfg.Browser)
	if court == nil {
		return opts
	}
	opts.WaitSelector = court.WaitSelector
	if d := court.WaitTimeout(); d > 0 {
		opts.WaitTimeout = d
	}
	if d := court.SettleDelay(); d > 0 {
		opts.SettleDelay = d
	}
	return opts
}

// batchOptions builds pacing and retry settings. Court profile pacing wins
// over the batch config.
func batchOptions(court *config.CourtProfile) batch.Options {
	opts := batch.Options{
		Delay:             time.Duration(cfg.Batch.DelaySecs * float64(time.Second)),
		BatchSize:         cfg.Batch.BatchSize,
		BatchPause:        time.Duration(cfg.Batch.BatchPauseSecs) * time.Second,
		RequestsPerMinute: cfg.Batch.RequestsPerMinute,
		Retry:             resilience.FromBatchConfig(cfg.Batch),
	}
	if court == nil {
		return opts
	}
	opts.WaitSelector = court.WaitSelector
	if court.RateLimitSeconds > 0 {
		opts.Delay = court.Delay()
	}
	if court.BatchSize > 0 {
		opts.BatchSize = court.BatchSize
	}
	if court.BatchPauseSeconds > 0 {
		opts.BatchPause = court.BatchPause()
	}
	return opts
}

// outputDir returns the court's output directory or the configured one.
func outputDir(court *config.CourtProfile) string {
	if court != nil && court.OutputDir != "" {
		return court.OutputDir
	}
	return cfg.Output.Dir
}

func screenshotsDir(court *config.CourtProfile) string {
	if court != nil && court.OutputDir != "" && cfg.Output.ScreenshotsDir == "" {
		return filepath.Join(court.OutputDir, "screenshots")
	}
	return cfg.ScreenshotsDir()
}

func courtKey(court *config.CourtProfile) string {
	if court == nil {
		return ""
	}
	return court.Key
}
