package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/reference"
	"gorm.io/gorm"
)

// Manager is the resolution engine. Owner arguments are live entities
// implementing reference.Referenceable; a nil owner requests the generic
// behavior.
type Manager interface {
	WithTx(tx *gorm.DB) Manager

	Definitions() []Definition
	Definition(feature string) (Definition, error)
	FeatureExists(feature string) bool
	Strategy(feature string) (Strategy, error)

	DefaultConfig(ctx context.Context, feature string) (Params, error)
	SetDefaultConfig(ctx context.Context, feature string, cfg Params) error
	HasParameters(feature string) (bool, error)
	HasParameter(feature, name string) (bool, error)

	IsValidCandidate(feature string, owner any) (bool, error)
	AssignmentFor(ctx context.Context, owner any, feature string) (*Assignment, error)
	AssignmentsByOwner(ctx context.Context, owner any, feature string) ([]Assignment, error)
	Parameters(ctx context.Context, feature string, owner any) (Params, error)
	Parameter(ctx context.Context, feature, name string, owner any) (any, error)
	IsActive(ctx context.Context, feature string, owner any) (bool, error)

	// Assign persists a new assignment without touching the owner.
	Assign(ctx context.Context, feature string, owner any, params Params, source any) (*Assignment, error)
	// UpdateOwner re-resolves feature for owner and lets the strategy
	// materialize the result.
	UpdateOwner(ctx context.Context, feature string, owner any) error
}

// Service is the administrative facade: it validates operator input and
// hands the heavy lifting to queued tasks.
type Service interface {
	ListFeatures(ctx context.Context) ([]FeatureResponse, error)
	SetDefaults(ctx context.Context, req SetDefaultsRequest) (*SetDefaultsResponse, error)
	RequestAssign(ctx context.Context, req AssignRequest) error
	RequestRemove(ctx context.Context, req RemoveRequest) error
}

type FeatureResponse struct {
	Name       string                `json:"name"`
	Strategy   string                `json:"strategy"`
	Candidates []string              `json:"candidates"`
	Defaults   Params                `json:"defaults"`
	Parameters []ParameterDescriptor `json:"parameters"`
}

type SetDefaultsRequest struct {
	Feature string       `json:"feature"`
	Config  Params       `json:"config"`
	UserID  snowflake.ID `json:"user_id"`
}

type SetDefaultsResponse struct {
	Feature   string `json:"feature"`
	OldConfig Params `json:"old_config"`
	NewConfig Params `json:"new_config"`
	Changed   bool   `json:"changed"`
}

type AssignRequest struct {
	Feature string        `json:"feature"`
	Owner   reference.Ref `json:"owner"`
	Source  reference.Ref `json:"source"`
	Params  Params        `json:"params"`
}

type RemoveRequest struct {
	AssignmentID snowflake.ID `json:"assignment_id"`
	UserID       snowflake.ID `json:"user_id"`
}
