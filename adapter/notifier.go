package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/bundlesync/log"
)

// DefaultNotifyTimeout bounds a single Notify call including retries.
const DefaultNotifyTimeout = 30 * time.Second

// Notifier sends events through an optional adapter. Failures are
// logged and never returned: a notification must not change the outcome
// of the publish or sync it reports.
type Notifier struct {
	adapter Adapter
	logger  *log.Logger
	timeout time.Duration
}

// NewNotifier creates a notifier. A nil adapter makes Notify a no-op.
func NewNotifier(a Adapter, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Notifier{adapter: a, logger: logger, timeout: DefaultNotifyTimeout}
}

// Enabled reports whether an adapter is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.adapter != nil
}

// Notify publishes event and reports whether it was delivered.
func (n *Notifier) Notify(ctx context.Context, event *Event) bool {
	if !n.Enabled() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.adapter.Publish(ctx, event); err != nil {
		n.logger.Warn("event notification failed", map[string]any{
			"event_type": event.EventType,
			"id":         event.ID,
			"error":      err.Error(),
		})
		return false
	}
	n.logger.Debug("event notification sent", map[string]any{
		"event_type": event.EventType,
		"id":         event.ID,
	})
	return true
}

// Close closes the adapter, if any.
func (n *Notifier) Close() error {
	if !n.Enabled() {
		return nil
	}
	return n.adapter.Close()
}
