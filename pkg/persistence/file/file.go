// Package file provides file-based persistence for automation rules and
// execution state. It is intended for local development and tests; the
// single-active-execution invariant is enforced with an in-process lock
// rather than a database constraint.
package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/dripflow/dripflow/pkg/persistence"
)

// Persistence implements the persistence layer on top of the file system.
type Persistence struct {
	root              string
	ruleRepo          *RuleRepository
	contactRepo       *ContactRepository
	executionRepo     *ExecutionRepository
	stepExecutionRepo *StepExecutionRepository
	notificationRepo  *NotificationRepository
}

// NewPersistence creates a file-based persistence rooted at the given
// directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:              cleanRoot,
		ruleRepo:          NewRuleRepository(cleanRoot),
		contactRepo:       NewContactRepository(cleanRoot),
		executionRepo:     NewExecutionRepository(cleanRoot),
		stepExecutionRepo: NewStepExecutionRepository(cleanRoot),
		notificationRepo:  NewNotificationRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. There is nothing to clean up for
// file-based persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) RuleRepository() persistence.RuleRepository {
	return fp.ruleRepo
}

func (fp *Persistence) ContactRepository() persistence.ContactRepository {
	return fp.contactRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) StepExecutionRepository() persistence.StepExecutionRepository {
	return fp.stepExecutionRepo
}

func (fp *Persistence) NotificationRepository() persistence.NotificationRepository {
	return fp.notificationRepo
}

// validateID rejects IDs unsafe for use as file names.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return errors.New("id contains invalid characters")
	}

	return nil
}

func entityPath(root, dir, id string) string {
	return filepath.Join(root, dir, id+".json")
}

func ensureDir(root, dir string) (string, error) {
	path := filepath.Join(root, dir)

	err := os.MkdirAll(path, 0750)
	if err != nil {
		return "", err
	}

	return path, nil
}
