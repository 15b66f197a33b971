// Package notify posts an end-of-run summary to a webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nexus-paies/fiscal-updater/internal/config"
	"github.com/nexus-paies/fiscal-updater/internal/model"
)

// Severity values carried by a Message.
const (
	SeverityInfo = "info"
	SeverityHigh = "high"
)

// Message is the JSON body posted to the webhook.
type Message struct {
	RunID     string           `json:"run_id"`
	Severity  string           `json:"severity"`
	Text      string           `json:"text"`
	DryRun    bool             `json:"dry_run"`
	Changes   []model.Change   `json:"changes"`
	Errors    []model.RunError `json:"errors"`
	Rejected  int              `json:"rejected"`
	Timestamp time.Time        `json:"timestamp"`
}

// Notifier delivers run summaries to the configured webhook URL.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
}

// New creates a Notifier with the given config.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.WebhookURL != ""
}

// ShouldSend reports whether the summary is worth a notification.
func (n *Notifier) ShouldSend(sum *model.RunSummary) bool {
	if !n.Enabled() {
		return false
	}
	if n.cfg.OnlyChanges && len(sum.Changes) == 0 && len(sum.Errors) == 0 {
		return false
	}
	return true
}

// Notify posts the summary when ShouldSend allows it. It returns true when a
// message was delivered.
func (n *Notifier) Notify(ctx context.Context, sum *model.RunSummary) (bool, error) {
	if !n.ShouldSend(sum) {
		return false, nil
	}
	msg := NewMessage(sum)
	if err := n.post(ctx, msg); err != nil {
		return false, err
	}
	zap.L().Info("notify: summary sent",
		zap.String("run_id", sum.ID),
		zap.String("severity", msg.Severity),
	)
	return true, nil
}

// NewMessage builds the webhook body for a run.
func NewMessage(sum *model.RunSummary) Message {
	sev := SeverityInfo
	if sum.Failed() {
		sev = SeverityHigh
	}
	text := fmt.Sprintf("fiscal-updater: %d change(s), %d error(s)", len(sum.Changes), len(sum.Errors))
	if sum.DryRun {
		text += " (dry run)"
	}
	return Message{
		RunID:     sum.ID,
		Severity:  sev,
		Text:      text,
		DryRun:    sum.DryRun,
		Changes:   sum.Changes,
		Errors:    sum.Errors,
		Rejected:  sum.Rejected,
		Timestamp: sum.FinishedAt.UTC(),
	}
}

func (n *Notifier) post(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
