package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automation_rules (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(50) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT false,
				flow_definition JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_rules_org ON automation_rules(organization_id);
			CREATE INDEX idx_automation_rules_trigger ON automation_rules(organization_id, trigger_type) WHERE active;

			CREATE TABLE automation_steps (
				rule_id UUID NOT NULL REFERENCES automation_rules(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				position INT NOT NULL,
				settings JSONB DEFAULT '{}',
				meta JSONB DEFAULT '{}',
				PRIMARY KEY (rule_id, id)
			);

			CREATE INDEX idx_automation_steps_rule ON automation_steps(rule_id, position);

			CREATE TABLE contacts (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				email VARCHAR(255) NOT NULL,
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				tags JSONB DEFAULT '[]',
				lead_score INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_contacts_org_email ON contacts(organization_id, email);

			CREATE TABLE automation_executions (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				rule_id UUID NOT NULL REFERENCES automation_rules(id),
				contact_id UUID NOT NULL,
				contact_email VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				context JSONB DEFAULT '{}',
				current_step_id VARCHAR(255),
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_automation_executions_rule ON automation_executions(rule_id);
			CREATE INDEX idx_automation_executions_status ON automation_executions(status);

			-- The at-most-one-active invariant per (rule, contact) pair is
			-- enforced here, closing the check-then-act race of concurrent
			-- trigger delivery.
			CREATE UNIQUE INDEX idx_automation_executions_single_active
				ON automation_executions(rule_id, contact_id)
				WHERE status IN ('running', 'waiting');

			CREATE TABLE automation_step_executions (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL REFERENCES automation_executions(id) ON DELETE CASCADE,
				step_id VARCHAR(255) NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				position INT NOT NULL,
				status VARCHAR(50) NOT NULL,
				scheduled_for TIMESTAMP WITH TIME ZONE,
				input_data JSONB DEFAULT '{}',
				output_data JSONB DEFAULT '{}',
				error_message TEXT,
				retry_count INT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_step_executions_execution ON automation_step_executions(execution_id, position);
			CREATE INDEX idx_step_executions_due ON automation_step_executions(scheduled_for) WHERE status = 'scheduled';

			CREATE TABLE notifications (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				kind VARCHAR(50) NOT NULL,
				message TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				read_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_notifications_org ON notifications(organization_id, created_at);
		`,
	}
}
