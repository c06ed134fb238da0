// Package mailer provides email gateway implementations for rendered
// automation messages.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dripflow/dripflow/pkg/protocol"
)

const defaultTimeoutSeconds = 30

// ErrDeliveryRejected is returned when the delivery service answers with a
// non-success status.
var ErrDeliveryRejected = errors.New("delivery service rejected message")

// HTTPGateway posts rendered messages as JSON to an external delivery
// service. Send errors propagate to the caller's retry path; the gateway
// itself does not retry.
type HTTPGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPGateway creates a gateway that posts to the given endpoint.
func NewHTTPGateway(endpoint, apiKey string, logger *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger:   logger.With("module", "mailer"),
	}
}

type deliveryRequest struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	HTMLBody   string `json:"html_body,omitempty"`
	TextBody   string `json:"text_body,omitempty"`
	TrackingID string `json:"tracking_id,omitempty"`
	ContactID  string `json:"contact_id,omitempty"`
}

// Send posts one message to the delivery service.
func (g *HTTPGateway) Send(ctx context.Context, email protocol.OutboundEmail) error {
	payload, err := json.Marshal(deliveryRequest{
		To:         email.To,
		Subject:    email.Subject,
		HTMLBody:   email.HTMLBody,
		TextBody:   email.TextBody,
		TrackingID: email.TrackingID,
		ContactID:  email.ContactID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)

		if err := resp.Body.Close(); err != nil {
			g.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrDeliveryRejected, resp.StatusCode)
	}

	g.logger.DebugContext(ctx, "message delivered",
		"to", email.To,
		"tracking_id", email.TrackingID,
	)

	return nil
}

var _ protocol.EmailGateway = (*HTTPGateway)(nil)
