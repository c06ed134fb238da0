// Package sendemail provides the step handler that renders and sends one
// email to the execution's contact.
package sendemail

import (
	"context"
	"errors"
	"fmt"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/template"
	"github.com/google/uuid"
)

// Handler sends one email. Subject and content undergo placeholder
// substitution against the execution context before the gateway call.
type Handler struct {
	stepID      string
	subject     string
	content     string
	htmlContent string
	gateway     protocol.EmailGateway
}

func newHandler(stepID string, settings map[string]any, gateway protocol.EmailGateway) (*Handler, error) {
	subject, _ := settings["subject"].(string)
	if subject == "" {
		return nil, errors.New("send email step requires a subject")
	}

	content, _ := settings["content"].(string)
	htmlContent, _ := settings["html_content"].(string)

	if content == "" && htmlContent == "" {
		return nil, errors.New("send email step requires content or html_content")
	}

	return &Handler{
		stepID:      stepID,
		subject:     subject,
		content:     content,
		htmlContent: htmlContent,
		gateway:     gateway,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, execution *models.AutomationExecution) (*protocol.StepOutcome, error) {
	subject := template.Substitute(h.subject, execution.Context)

	email := protocol.OutboundEmail{
		To:         execution.ContactEmail,
		Subject:    subject,
		TextBody:   template.Substitute(h.content, execution.Context),
		HTMLBody:   template.Substitute(h.htmlContent, execution.Context),
		TrackingID: uuid.New().String(),
		ContactID:  execution.ContactID,
	}

	err := h.gateway.Send(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to send email %q to %s: %w", subject, email.To, err)
	}

	return &protocol.StepOutcome{
		Output: map[string]any{
			"emailSent":  true,
			"subject":    subject,
			"trackingId": email.TrackingID,
		},
	}, nil
}

type Factory struct {
	gateway protocol.EmailGateway
}

func (f *Factory) Create(_ context.Context, stepID string, settings map[string]any) (protocol.StepHandler, error) {
	return newHandler(stepID, settings, f.gateway)
}

func (f *Factory) ID() string {
	return string(models.StepTypeSendEmail)
}

// NewFactory creates a send-email handler factory bound to the gateway.
func NewFactory(gateway protocol.EmailGateway) protocol.StepHandlerFactory {
	return &Factory{gateway: gateway}
}
