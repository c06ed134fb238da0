package cmd

import (
	"log/slog"

	"github.com/dripflow/dripflow/pkg/contacts"
	"github.com/dripflow/dripflow/pkg/mailer"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/registry"
)

// NewRegistry builds a step handler registry wired to the contact store and
// the configured email gateway.
func NewRegistry(logger *slog.Logger, p persistence.Persistence, gateway protocol.EmailGateway) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultHandlers(registry.Collaborators{
		Contacts: contacts.NewStore(p.ContactRepository(), logger),
		Mailer:   gateway,
	})

	return reg
}

// NewEmailGateway selects the delivery gateway. Without an endpoint
// configured, messages are logged instead of delivered.
func NewEmailGateway(endpoint, apiKey string, logger *slog.Logger) protocol.EmailGateway {
	if endpoint == "" {
		return mailer.NewLogGateway(logger)
	}

	return mailer.NewHTTPGateway(endpoint, apiKey, logger)
}
