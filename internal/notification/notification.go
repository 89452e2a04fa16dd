package notification

import (
	"context"
	"log/slog"
)

// Event describes a completed wallet operation for downstream real-time and
// notification layers. Delivery is best effort and never gates the underlying
// ledger commit.
type Event struct {
	TransactionID    string `json:"transaction_id"`
	Kind             string `json:"kind"`
	Amount           int64  `json:"amount"`
	SourceOwner      string `json:"source_owner,omitempty"`
	DestinationOwner string `json:"destination_owner,omitempty"`
}

// Notifier delivers wallet events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier is a stub implementation that writes events to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("wallet event",
		"transaction_id", event.TransactionID,
		"kind", event.Kind,
		"amount", event.Amount,
		"source_owner", event.SourceOwner,
		"destination_owner", event.DestinationOwner,
	)
	return nil
}
