package reporter

import (
	"context"
	"fmt"
	"time"

	"github.com/skeinflow/skein/pkg/config"
	"github.com/skeinflow/skein/pkg/log"
	"github.com/skeinflow/skein/pkg/metrics"
	"github.com/skeinflow/skein/pkg/types"
)

// Sender delivers one lifecycle message to the master. Implementations are
// a single attempt; the Reporter owns retry.
type Sender interface {
	Send(ctx context.Context, taskCtx *types.TaskExecutionContext, masterAddress string, kind types.MessageKind) error
}

// AlertClient forwards alerts to the alert service.
type AlertClient interface {
	SendAlert(ctx context.Context, groupID int, title, content string, strategy types.WarningStrategy) error
}

// Reporter sends lifecycle messages with at-least-once semantics and
// forwards task alerts. Delivery failures never propagate into task state:
// after the bounded retry is exhausted the loss is logged and the master is
// left to reconcile through its own timeout loop.
type Reporter struct {
	sender Sender
	alerts AlertClient
	retry  config.RetryConfig
}

// New creates a reporter. alerts may be nil when no alert service is wired.
func New(sender Sender, alerts AlertClient, retry config.RetryConfig) *Reporter {
	return &Reporter{sender: sender, alerts: alerts, retry: retry}
}

// Send delivers a lifecycle message, retrying with exponential backoff up
// to the configured attempt bound. The returned error is informational; the
// caller is expected to log it and move on.
func (r *Reporter) Send(ctx context.Context, taskCtx *types.TaskExecutionContext, masterAddress string, kind types.MessageKind) error {
	logger := log.WithTaskInstance(taskCtx.ProcessInstanceID, taskCtx.TaskInstanceID)

	interval := r.retry.InitialInterval.Std()
	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		lastErr = r.sender.Send(ctx, taskCtx, masterAddress, kind)
		if lastErr == nil {
			metrics.MessagesSentTotal.WithLabelValues(string(kind)).Inc()
			return nil
		}

		logger.Warn().Err(lastErr).
			Str("kind", string(kind)).
			Int("attempt", attempt).
			Msg("failed to send message to master")

		if attempt == r.retry.MaxAttempts {
			break
		}
		metrics.MessageRetriesTotal.Inc()

		select {
		case <-ctx.Done():
			metrics.MessageFailuresTotal.Inc()
			return fmt.Errorf("message delivery aborted: %w", ctx.Err())
		case <-time.After(interval):
		}
		interval *= 2
		if max := r.retry.MaxInterval.Std(); max > 0 && interval > max {
			interval = max
		}
	}

	metrics.MessageFailuresTotal.Inc()
	logger.Error().Err(lastErr).
		Str("kind", string(kind)).
		Int("attempts", r.retry.MaxAttempts).
		Msg("message delivery exhausted retries, master will reconcile by timeout")
	return fmt.Errorf("failed to deliver %s after %d attempts: %w", kind, r.retry.MaxAttempts, lastErr)
}

// Alert forwards a task alert, mapping a success exit code to the SUCCESS
// warning strategy and everything else to FAILURE. Best-effort.
func (r *Reporter) Alert(ctx context.Context, info types.TaskAlertInfo, statusCode int) {
	if r.alerts == nil {
		return
	}
	strategy := types.WarningFailure
	if statusCode == types.StatusSuccess.Code() {
		strategy = types.WarningSuccess
	}
	if err := r.alerts.SendAlert(ctx, info.AlertGroupID, info.Title, info.Content, strategy); err != nil {
		logger := log.WithComponent("reporter")
		logger.Error().Err(err).
			Int("alert_group_id", info.AlertGroupID).
			Msg("failed to send alert")
	}
}
