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

	"github.com/sells-group/aegis/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertScanFailureRate     AlertType = "scan_failure_rate"
	AlertCheckerFailureSpike AlertType = "checker_failure_spike"
	AlertPendingBacklog      AlertType = "pending_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
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

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Scan failure rate, with a floor so one failed scan out of two
	// does not page anyone.
	if snap.ScansTotal >= 5 && snap.ScanFailRate > a.cfg.ScanFailRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertScanFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Scan failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d scans in last %dh)",
				snap.ScanFailRate*100, a.cfg.ScanFailRateThreshold*100,
				snap.ScansFailed, snap.ScansTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.ScanFailRate,
				"threshold":    a.cfg.ScanFailRateThreshold,
				"failed":       snap.ScansFailed,
				"total":        snap.ScansTotal,
			},
			Timestamp: now,
		})
	}

	// Checker failures accumulating in diagnostics usually mean one
	// checker's backend is down.
	if a.cfg.CheckerFailureThreshold > 0 && snap.CheckerFailures > a.cfg.CheckerFailureThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertCheckerFailureSpike,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d checker failures recorded in last %dh (threshold %d)",
				snap.CheckerFailures, snap.LookbackHours, a.cfg.CheckerFailureThreshold,
			),
			Details: map[string]any{
				"checker_failures": snap.CheckerFailures,
				"threshold":        a.cfg.CheckerFailureThreshold,
			},
			Timestamp: now,
		})
	}

	// A growing pending queue means reviewers are falling behind and the
	// learner is starving for adjudications.
	if a.cfg.PendingBacklogThreshold > 0 && snap.FindingsPending > a.cfg.PendingBacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPendingBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d findings pending review (threshold %d)",
				snap.FindingsPending, a.cfg.PendingBacklogThreshold,
			),
			Details: map[string]any{
				"pending":   snap.FindingsPending,
				"threshold": a.cfg.PendingBacklogThreshold,
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

// sendWebhook posts a single alert to the webhook URL.
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
