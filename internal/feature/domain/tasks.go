package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/premium/internal/reference"
)

var payloadValidator = validator.New()

// AssignPayload is the body of TaskAssign.
type AssignPayload struct {
	Feature string        `json:"feature" validate:"required"`
	Owner   reference.Ref `json:"owner"`
	Source  reference.Ref `json:"source"`
	Params  Params        `json:"params" validate:"required"`
}

func (p AssignPayload) Validate() error {
	if err := payloadValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.Feature) == "" {
		return fmt.Errorf("%w: feature is blank", ErrInvalidPayload)
	}
	if err := p.Owner.Validate(); err != nil {
		return fmt.Errorf("%w: owner: %v", ErrInvalidPayload, err)
	}
	if err := p.Source.Validate(); err != nil {
		return fmt.Errorf("%w: source: %v", ErrInvalidPayload, err)
	}
	return nil
}

// RemovePayload is the body of TaskRemove.
type RemovePayload struct {
	AssignmentID int64 `json:"assignment_id" validate:"gt=0"`
	UserID       int64 `json:"user_id" validate:"gt=0"`
}

func (p RemovePayload) Validate() error {
	if err := payloadValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ReconcilePayload is the body of TaskReconcileDefaults. OldConfig is the
// default that was in effect before the change.
type ReconcilePayload struct {
	Feature   string `json:"feature" validate:"required"`
	OldConfig Params `json:"old_config" validate:"required,min=1"`
	UserID    int64  `json:"user_id" validate:"gt=0"`
}

func (p ReconcilePayload) Validate() error {
	if err := payloadValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !p.OldConfig.HasActive() {
		return fmt.Errorf("%w: old_config needs a boolean %q", ErrInvalidPayload, ParamActive)
	}
	return nil
}
