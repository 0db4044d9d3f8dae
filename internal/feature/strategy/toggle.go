package strategy

import "github.com/smallbiznis/premium/internal/feature/domain"

const NameToggle = "toggle"

// Toggle is a plain on/off feature with no parameters. Resolution alone
// answers whether it is active, so owners carry no materialized state.
type Toggle struct {
	Base
}

func NewToggle(def domain.Definition) (domain.Strategy, error) {
	return Toggle{Base: Base{Feature: def.Name}}, nil
}
