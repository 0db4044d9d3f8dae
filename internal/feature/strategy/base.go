package strategy

import (
	"context"
	"fmt"

	"github.com/smallbiznis/premium/internal/feature/domain"
	"gorm.io/gorm"
)

const (
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeString = "string"
)

// Parameter declares one strategy parameter.
type Parameter struct {
	Descriptor domain.ParameterDescriptor
	Default    any
	Rule       string
}

// Base supplies the table-driven half of domain.Strategy: defaults,
// descriptors and validation rules come from Parameters, the rating is 0
// and owners are left untouched. Strategies embed it and override what
// they need.
type Base struct {
	Feature    string
	Parameters []Parameter
}

func (b Base) DefaultConfig() domain.Params {
	params := make(domain.Params, len(b.Parameters))
	for _, p := range b.Parameters {
		params[p.Descriptor.Name] = p.Default
	}
	return params
}

func (b Base) lookup(name string) (Parameter, error) {
	for _, p := range b.Parameters {
		if p.Descriptor.Name == name {
			return p, nil
		}
	}
	return Parameter{}, fmt.Errorf("%w: %s.%s", domain.ErrUnknownParameter, b.Feature, name)
}

func (b Base) ParameterDescriptor(name string) (domain.ParameterDescriptor, error) {
	p, err := b.lookup(name)
	if err != nil {
		return domain.ParameterDescriptor{}, err
	}
	return p.Descriptor, nil
}

func (b Base) ParameterValidation(name string) (string, error) {
	p, err := b.lookup(name)
	if err != nil {
		return "", err
	}
	return p.Rule, nil
}

func (b Base) CalculateRating(domain.Params) int { return 0 }

func (b Base) UpdateOwner(context.Context, *gorm.DB, any, domain.Params) error { return nil }
