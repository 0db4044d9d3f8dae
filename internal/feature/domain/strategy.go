package domain

import (
	"context"

	"gorm.io/gorm"
)

// ParameterDescriptor describes how a parameter is entered by an operator.
type ParameterDescriptor struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Help  string `json:"help,omitempty"`
}

// Strategy is the per-feature-type plugin the engine dispatches to.
type Strategy interface {
	// DefaultConfig returns the parameter defaults, without "active".
	DefaultConfig() Params
	// ParameterDescriptor fails with ErrUnknownParameter for names the
	// strategy does not declare.
	ParameterDescriptor(name string) (ParameterDescriptor, error)
	// ParameterValidation returns a validator rule for the parameter.
	ParameterValidation(name string) (string, error)
	// CalculateRating scores params for precedence ordering.
	CalculateRating(params Params) int
	// UpdateOwner idempotently materializes params (including "active") on
	// the owner using tx. It must not begin or commit transactions.
	UpdateOwner(ctx context.Context, tx *gorm.DB, owner any, params Params) error
}

// StrategyFactory builds the strategy bound to one feature definition.
type StrategyFactory func(def Definition) (Strategy, error)

// NamedStrategyFactory registers a factory under the name used by
// definitions.
type NamedStrategyFactory struct {
	Name string
	New  StrategyFactory
}
