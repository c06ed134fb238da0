package mailer

import (
	"context"
	"log/slog"

	"github.com/dripflow/dripflow/pkg/protocol"
)

// LogGateway writes outgoing messages to the structured log instead of
// delivering them. Useful for local development and tests.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a log-only gateway.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With("module", "mailer")}
}

// Send logs the message and reports success.
func (g *LogGateway) Send(ctx context.Context, email protocol.OutboundEmail) error {
	g.logger.InfoContext(ctx, "would deliver message",
		"to", email.To,
		"subject", email.Subject,
		"tracking_id", email.TrackingID,
	)

	return nil
}

var _ protocol.EmailGateway = (*LogGateway)(nil)
