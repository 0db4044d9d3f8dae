package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// ParamActive is the reserved parameter carrying the activation flag.
const ParamActive = "active"

// Params maps parameter names to values. A default config is a Params that
// always carries a boolean "active".
type Params map[string]any

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Active reports the activation flag; a missing or non-boolean flag is false.
func (p Params) Active() bool {
	active, _ := p[ParamActive].(bool)
	return active
}

// HasActive reports whether the activation flag is present and boolean.
func (p Params) HasActive() bool {
	_, ok := p[ParamActive].(bool)
	return ok
}

// WithActive returns a copy with the activation flag set.
func (p Params) WithActive(active bool) Params {
	out := p.Clone()
	out[ParamActive] = active
	return out
}

// Without returns a copy minus the named keys.
func (p Params) Without(keys ...string) Params {
	out := p.Clone()
	for _, key := range keys {
		delete(out, key)
	}
	return out
}

// Int coerces a parameter to int.
func (p Params) Int(name string) (int, error) {
	value, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return cast.ToIntE(value)
}

// Equal compares two parameter sets by their canonical JSON encoding, so
// numbers decoded from JSON compare equal to the ints they came from.
func (p Params) Equal(other Params) bool {
	if len(p) == 0 && len(other) == 0 {
		return true
	}
	left, err := json.Marshal(p)
	if err != nil {
		return false
	}
	right, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// Equivalent reports whether two effective configs are observably the same
// for an owner: both inactive, or identical parameters.
func Equivalent(a, b Params) bool {
	if !a.Active() && !b.Active() {
		return true
	}
	return a.Equal(b)
}
