package chore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/chorewheel/internal/assignment"
	"github.com/dukerupert/chorewheel/internal/model"
)

var (
	// ErrValidation marks a malformed definition or request. It is returned
	// before anything is written.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState marks a lifecycle transition the occurrence's current
	// status does not allow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrUnauthorized marks an actor that may not act on the occurrence.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNotFound marks an unknown occurrence or definition id.
	ErrNotFound = errors.New("not found")
)

// ValidateDefinition checks a recurring chore definition before it is
// stored. Rule and assignment errors are wrapped together with ErrValidation.
func ValidateDefinition(def model.RecurringChore) error {
	if strings.TrimSpace(def.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if def.Points < 0 {
		return fmt.Errorf("%w: points must be >= 0", ErrValidation)
	}
	if def.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if err := def.Rule.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := assignment.Validate(def.AssignmentMode, def.FixedAssignees, def.RotationPool); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
