package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCaseFailureRate AlertType = "case_failure_rate"
	AlertRunAborted      AlertType = "run_aborted"
)

const defaultMinCases = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool {
	return a.cfg.WebhookURL != ""
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	minCases := a.cfg.MinCases
	if minCases <= 0 {
		minCases = defaultMinCases
	}

	if snap.CasesAttempted >= minCases && snap.CaseFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertCaseFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Case failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempted across %d run(s))",
				snap.CaseFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.CasesFailed, snap.CasesAttempted, snap.Runs,
			),
			Details: map[string]any{
				"failure_rate": snap.CaseFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.CasesFailed,
				"attempted":    snap.CasesAttempted,
			},
			Timestamp: now,
		})
	}

	if snap.RunsAborted > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertRunAborted,
			Severity: "high",
			Message:  fmt.Sprintf("%d batch run(s) aborted", snap.RunsAborted),
			Details: map[string]any{
				"aborted": snap.RunsAborted,
				"runs":    snap.Runs,
				"last":    snap.LastAbortError,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
