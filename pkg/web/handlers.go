// Package web provides the HTTP API for rule authoring and execution
// queries.
package web

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/services"
)

// APIHandlers exposes the rule and execution services over HTTP.
type APIHandlers struct {
	rules       *services.Rules
	executions  *services.Executions
	persistence persistence.Persistence
}

// NewAPIHandlers creates the API handler set.
func NewAPIHandlers(
	rules *services.Rules,
	executions *services.Executions,
	persistence persistence.Persistence,
) *APIHandlers {
	return &APIHandlers{rules: rules, executions: executions, persistence: persistence}
}

// Register mounts all routes on the app. All resources are scoped under an
// organization path segment.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	org := app.Group("/organizations/:orgID")

	org.Get("/rules", h.ListRules)
	org.Post("/rules", h.CreateRule)
	org.Get("/rules/:ruleID", h.GetRule)
	org.Put("/rules/:ruleID", h.UpdateRule)
	org.Delete("/rules/:ruleID", h.DeleteRule)
	org.Patch("/rules/:ruleID/activation", h.SetRuleActivation)

	org.Get("/rules/:ruleID/executions", h.ListExecutions)
	org.Get("/executions/:executionID", h.GetExecution)
	org.Post("/executions/:executionID/cancel", h.CancelExecution)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := fiber.StatusOK
	checkers := fiber.Map{"persistence": "ok"}

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusInternalServerError
		checkers["persistence"] = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  checkers,
		"timestamp": time.Now().UTC(),
	})
}

type ruleRequest struct {
	Name           string          `json:"name"`
	TriggerType    string          `json:"trigger_type"`
	Active         bool            `json:"active"`
	FlowDefinition json.RawMessage `json:"flow_definition"`
}

func (h *APIHandlers) ListRules(c fiber.Ctx) error {
	rules, err := h.rules.ListRules(c.Context(), c.Params("orgID"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"rules": rules})
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req ruleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	rule, err := h.rules.CreateRule(c.Context(), services.SaveRuleRequest{
		OrganizationID: c.Params("orgID"),
		Name:           req.Name,
		TriggerType:    req.TriggerType,
		Active:         req.Active,
		FlowDefinition: req.FlowDefinition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.rules.GetRule(c.Context(), c.Params("orgID"), c.Params("ruleID"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	var req ruleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	rule, err := h.rules.UpdateRule(c.Context(), c.Params("ruleID"), services.SaveRuleRequest{
		OrganizationID: c.Params("orgID"),
		Name:           req.Name,
		TriggerType:    req.TriggerType,
		Active:         req.Active,
		FlowDefinition: req.FlowDefinition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	err := h.rules.DeleteRule(c.Context(), c.Params("orgID"), c.Params("ruleID"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetRuleActivation(c fiber.Ctx) error {
	var req struct {
		Active *bool `json:"active"`
	}

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if req.Active == nil {
		return badRequest(c, "active field is required")
	}

	rule, err := h.rules.SetActive(c.Context(), c.Params("orgID"), c.Params("ruleID"), *req.Active)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	executions, err := h.executions.ListByRule(
		c.Context(), c.Params("orgID"), c.Params("ruleID"), c.Query("status"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	detail, err := h.executions.Get(c.Context(), c.Params("orgID"), c.Params("executionID"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	execution, err := h.executions.Cancel(c.Context(), c.Params("orgID"), c.Params("executionID"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}
