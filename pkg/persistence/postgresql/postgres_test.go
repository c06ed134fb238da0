package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{
		"notifications",
		"automation_step_executions",
		"automation_executions",
		"contacts",
		"automation_steps",
		"automation_rules",
		"schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("dripflow_test"),
			postgres.WithUsername("dripflow"),
			postgres.WithPassword("dripflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func newRule(organizationID string, steps ...*models.AutomationStep) *models.AutomationRule {
	rule := &models.AutomationRule{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           "Welcome Sequence",
		TriggerType:    models.TriggerTagAdded,
		Active:         true,
		FlowDefinition: []byte(`{"nodes":{}}`),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	for i, step := range steps {
		step.RuleID = rule.ID
		step.Position = i
	}

	rule.Steps = steps

	return rule
}

func newContact(organizationID string) *models.Contact {
	return &models.Contact{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Tags:           []string{"customer"},
		LeadScore:      10,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'automation_rules')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "automation_rules table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'automation_step_executions')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "automation_step_executions table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestRuleRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := uuid.New().String()
	rule := newRule(organizationID,
		&models.AutomationStep{
			ID:       "email-1",
			Type:     models.StepTypeSendEmail,
			Settings: map[string]any{"subject": "Welcome!", "content": "Hello {{contactFirstName}}"},
		},
		&models.AutomationStep{
			ID:       "tag-1",
			Type:     models.StepTypeAddTag,
			Settings: map[string]any{"tag": "onboarded"},
		},
	)

	err := p.RuleRepository().Save(ctx, rule)
	require.NoError(t, err)

	retrieved, err := p.RuleRepository().GetByID(ctx, organizationID, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, rule.ID, retrieved.ID)
	assert.Equal(t, rule.Name, retrieved.Name)
	assert.Equal(t, models.TriggerTagAdded, retrieved.TriggerType)
	assert.True(t, retrieved.Active)
	require.Len(t, retrieved.Steps, 2)
	assert.Equal(t, "email-1", retrieved.Steps[0].ID)
	assert.Equal(t, "Welcome!", retrieved.Steps[0].Settings["subject"])
	assert.Equal(t, "tag-1", retrieved.Steps[1].ID)

	// Tenancy: another organization cannot see the rule.
	_, err = p.RuleRepository().GetByID(ctx, uuid.New().String(), rule.ID)
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestRuleRepository_SaveReplacesSteps(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := uuid.New().String()
	rule := newRule(organizationID,
		&models.AutomationStep{
			ID:       "email-1",
			Type:     models.StepTypeSendEmail,
			Settings: map[string]any{"subject": "Welcome!"},
		},
	)

	err := p.RuleRepository().Save(ctx, rule)
	require.NoError(t, err)

	rule.Steps = []*models.AutomationStep{
		{ID: "wait-1", RuleID: rule.ID, Type: models.StepTypeWait, Position: 0, Settings: map[string]any{"delay": float64(1), "unit": "days"}},
		{ID: "email-2", RuleID: rule.ID, Type: models.StepTypeSendEmail, Position: 1, Settings: map[string]any{"subject": "Still there?"}},
	}

	err = p.RuleRepository().Save(ctx, rule)
	require.NoError(t, err)

	steps, err := p.RuleRepository().StepsByRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "wait-1", steps[0].ID)
	assert.Equal(t, "email-2", steps[1].ID)
}

func TestRuleRepository_ListActiveByTrigger(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := uuid.New().String()

	active := newRule(organizationID)
	require.NoError(t, p.RuleRepository().Save(ctx, active))

	inactive := newRule(organizationID)
	inactive.Active = false
	require.NoError(t, p.RuleRepository().Save(ctx, inactive))

	otherTrigger := newRule(organizationID)
	otherTrigger.TriggerType = models.TriggerEmailOpened
	require.NoError(t, p.RuleRepository().Save(ctx, otherTrigger))

	rules, err := p.RuleRepository().ListActiveByTrigger(ctx, organizationID, models.TriggerTagAdded)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, active.ID, rules[0].ID)
}

func TestRuleRepository_Delete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := uuid.New().String()
	rule := newRule(organizationID)

	require.NoError(t, p.RuleRepository().Save(ctx, rule))
	require.NoError(t, p.RuleRepository().Delete(ctx, organizationID, rule.ID))

	_, err := p.RuleRepository().GetByID(ctx, organizationID, rule.ID)
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)

	err = p.RuleRepository().Delete(ctx, organizationID, uuid.New().String())
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestContactRepository_RoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	contact := newContact(uuid.New().String())

	err := p.ContactRepository().Save(ctx, contact)
	require.NoError(t, err)

	retrieved, err := p.ContactRepository().GetByID(ctx, contact.OrganizationID, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, contact.Email, retrieved.Email)
	assert.Equal(t, []string{"customer"}, retrieved.Tags)
	assert.Equal(t, 10, retrieved.LeadScore)

	_, err = p.ContactRepository().GetByID(ctx, uuid.New().String(), contact.ID)
	assert.ErrorIs(t, err, persistence.ErrContactNotFound)
}

func TestExecutionRepository_DuplicateActiveRejected(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := uuid.New().String()
	rule := newRule(organizationID)
	require.NoError(t, p.RuleRepository().Save(ctx, rule))

	contact := newContact(organizationID)
	require.NoError(t, p.ContactRepository().Save(ctx, contact))

	first := models.NewExecution(rule, contact, map[string]any{"tag": "customer"})
	require.NoError(t, p.ExecutionRepository().Create(ctx, first))

	// The partial unique index rejects a second active run for the pair.
	second := models.NewExecution(rule, contact, nil)
	err := p.ExecutionRepository().Create(ctx, second)
	assert.ErrorIs(t, err, persistence.ErrDuplicateActiveExecution)

	// A terminal prior run unblocks the pair.
	require.NoError(t, first.Complete())
	require.NoError(t, p.ExecutionRepository().Update(ctx, first))

	third := models.NewExecution(rule, contact, nil)
	assert.NoError(t, p.ExecutionRepository().Create(ctx, third))
}

func TestExecutionRepository_UpdateAndList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := uuid.New().String()
	rule := newRule(organizationID)
	require.NoError(t, p.RuleRepository().Save(ctx, rule))

	contact := newContact(organizationID)
	require.NoError(t, p.ContactRepository().Save(ctx, contact))

	execution := models.NewExecution(rule, contact, map[string]any{"tag": "customer"})
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	require.NoError(t, execution.Fail("step email-1 failed after 3 attempts"))
	require.NoError(t, p.ExecutionRepository().Update(ctx, execution))

	retrieved, err := p.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, retrieved.Status)
	assert.Equal(t, "step email-1 failed after 3 attempts", retrieved.ErrorMessage)
	require.NotNil(t, retrieved.CompletedAt)
	assert.Equal(t, "customer", retrieved.Context["tag"])
	assert.Equal(t, contact.Email, retrieved.Context["contactEmail"])

	failed := models.ExecutionStatusFailed
	listed, err := p.ExecutionRepository().ListByRule(ctx, rule.ID, &failed)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, execution.ID, listed[0].ID)

	running := models.ExecutionStatusRunning
	listed, err = p.ExecutionRepository().ListByRule(ctx, rule.ID, &running)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = p.ExecutionRepository().GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestStepExecutionRepository_Lifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	organizationID := uuid.New().String()
	emailStep := &models.AutomationStep{
		ID:       "email-1",
		Type:     models.StepTypeSendEmail,
		Settings: map[string]any{"subject": "Welcome!"},
	}
	waitStep := &models.AutomationStep{
		ID:       "wait-1",
		Type:     models.StepTypeWait,
		Settings: map[string]any{"delay": float64(1), "unit": "hours"},
	}
	rule := newRule(organizationID, emailStep, waitStep)
	require.NoError(t, p.RuleRepository().Save(ctx, rule))

	contact := newContact(organizationID)
	require.NoError(t, p.ContactRepository().Save(ctx, contact))

	execution := models.NewExecution(rule, contact, nil)
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	stepExecutions := []*models.AutomationStepExecution{
		models.NewStepExecution(execution.ID, emailStep, 0),
		models.NewStepExecution(execution.ID, waitStep, 1),
	}
	require.NoError(t, p.StepExecutionRepository().CreateBatch(ctx, stepExecutions))

	// FIFO: the lowest-position pending step comes first.
	next, err := p.StepExecutionRepository().NextPending(ctx, execution.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "email-1", next.StepID)
	assert.Equal(t, "Welcome!", next.InputData["subject"])

	require.NoError(t, next.Start())
	require.NoError(t, next.Complete(map[string]any{"delivered": true}))
	require.NoError(t, p.StepExecutionRepository().Update(ctx, next))

	next, err = p.StepExecutionRepository().NextPending(ctx, execution.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "wait-1", next.StepID)

	// Schedule the wait step and verify the due sweep picks it up.
	require.NoError(t, next.Start())
	require.NoError(t, next.Schedule(time.Now().UTC().Add(-time.Minute)))
	require.NoError(t, p.StepExecutionRepository().Update(ctx, next))

	due, err := p.StepExecutionRepository().DueScheduled(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "wait-1", due[0].StepID)

	none, err := p.StepExecutionRepository().NextPending(ctx, execution.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := p.StepExecutionRepository().ListByExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNotificationRepository_Create(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	notification := models.NewNotification(
		uuid.New().String(), models.NotificationAutomationFailed, "automation failed for ada@example.com")

	err := p.NotificationRepository().Create(ctx, notification)
	assert.NoError(t, err)
}
