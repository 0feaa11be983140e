package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertNoProviders         AlertType = "no_providers"
	AlertProviderUnavailable AlertType = "provider_unavailable"
	AlertCircuitOpen         AlertType = "circuit_open"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a HealthSnapshot and sends alerts via webhook.
type Alerter struct {
	webhookURL string
	client     *http.Client
}

// NewAlerter creates an Alerter posting to webhookURL. An empty URL turns
// SendAlerts into a no-op.
func NewAlerter(webhookURL string) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot and returns any alerts.
func (a *Alerter) Evaluate(snap *HealthSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Total == 0 {
		return []Alert{{
			Type:      AlertNoProviders,
			Severity:  "high",
			Message:   "No providers are registered; every search will return no offers",
			Timestamp: now,
		}}
	}

	var unavailable, open []string
	for _, p := range snap.Providers {
		if !p.Available {
			unavailable = append(unavailable, p.Name)
		}
		if p.Circuit == resilience.CircuitOpen.String() {
			open = append(open, p.Name)
		}
	}

	if len(unavailable) > 0 {
		severity := "medium"
		if len(unavailable) == snap.Total {
			severity = "high"
		}
		alerts = append(alerts, Alert{
			Type:     AlertProviderUnavailable,
			Severity: severity,
			Message: fmt.Sprintf("%d of %d provider(s) unavailable: %s",
				len(unavailable), snap.Total, strings.Join(unavailable, ", ")),
			Details: map[string]any{
				"providers": unavailable,
				"total":     snap.Total,
			},
			Timestamp: now,
		})
	}

	if len(open) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertCircuitOpen,
			Severity: "medium",
			Message: fmt.Sprintf("Circuit open for %d provider(s): %s",
				len(open), strings.Join(open, ", ")),
			Details: map[string]any{
				"providers": open,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.webhookURL == "" || len(alerts) == 0 {
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
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
