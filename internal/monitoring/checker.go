package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates recent runs on a ticker and posts new alerts. An alert
// that is still firing with unchanged details is not re-sent.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	// firing maps an alert type to the fingerprint last sent for it.
	firing map[AlertType]string
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		firing:    make(map[AlertType]string),
	}
}

// Run checks once, then on every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	if ctx.Err() != nil {
		return
	}
	log.Info("monitoring: checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)
	c.check(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check collects a snapshot and sends the alerts that are new or changed.
// It returns the number delivered.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect runs", zap.Error(err))
		return 0
	}

	fresh := c.pending(c.alerter.Evaluate(snap))
	if len(fresh) == 0 {
		log.Debug("monitoring: nothing new to report",
			zap.Int("runs", snap.Runs),
			zap.Float64("case_fail_rate", snap.CaseFailRate),
		)
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	if sent == len(fresh) {
		for _, a := range fresh {
			c.firing[a.Type] = fingerprint(a)
		}
	}
	log.Info("monitoring: alerts dispatched",
		zap.Int("new", len(fresh)),
		zap.Int("sent", sent),
	)
	return sent
}

// pending drops alerts already sent with the same details and forgets
// types that stopped firing, so a recurrence alerts again.
func (c *Checker) pending(alerts []Alert) []Alert {
	seen := make(map[AlertType]bool, len(alerts))
	var out []Alert
	for _, a := range alerts {
		seen[a.Type] = true
		if c.firing[a.Type] != fingerprint(a) {
			out = append(out, a)
		}
	}
	for t := range c.firing {
		if !seen[t] {
			delete(c.firing, t)
		}
	}
	return out
}

func fingerprint(a Alert) string {
	switch a.Type {
	case AlertRunAborted:
		return fmt.Sprintf("%v|%v", a.Details["aborted"], a.Details["last"])
	case AlertCaseFailureRate:
		return fmt.Sprintf("%v/%v", a.Details["failed"], a.Details["attempted"])
	default:
		return a.Message
	}
}
