package registry

import (
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/steps/condition"
	"github.com/dripflow/dripflow/pkg/steps/leadscore"
	"github.com/dripflow/dripflow/pkg/steps/sendemail"
	"github.com/dripflow/dripflow/pkg/steps/tag"
	"github.com/dripflow/dripflow/pkg/steps/trigger"
	"github.com/dripflow/dripflow/pkg/steps/wait"
)

// Collaborators carries the external dependencies step handlers act
// through.
type Collaborators struct {
	Contacts protocol.ContactStore
	Mailer   protocol.EmailGateway
}

// RegisterDefaultHandlers registers all built-in step handler factories.
// Step kinds without a handler here (webhook, group membership, field
// updates) are skipped by the engine's unknown-type path.
func (r *Registry) RegisterDefaultHandlers(c Collaborators) {
	r.RegisterHandler(trigger.NewFactory())
	r.RegisterHandler(sendemail.NewFactory(c.Mailer))
	r.RegisterHandler(wait.NewFactory())
	r.RegisterHandler(tag.NewAddFactory(c.Contacts))
	r.RegisterHandler(tag.NewRemoveFactory(c.Contacts))
	r.RegisterHandler(leadscore.NewFactory(c.Contacts))
	r.RegisterHandler(condition.NewFactory())
}
