package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidRef       = errors.New("invalid_reference")
	ErrUnknownKind      = errors.New("unknown_reference_kind")
	ErrNotFound         = errors.New("reference_not_found")
	ErrNotReferenceable = errors.New("not_referenceable")
)

// Ref is a polymorphic pointer to a persisted entity: its kind plus the
// identifier fields needed to load it.
type Ref struct {
	Type        string         `json:"type"`
	Identifiers map[string]any `json:"identifiers"`
}

// Referenceable is implemented by entities that can be owners or sources.
type Referenceable interface {
	Reference() Ref
}

// NewRef builds a reference keyed by a snowflake id.
func NewRef(kind string, id snowflake.ID) Ref {
	return Ref{Type: kind, Identifiers: map[string]any{"id": id.String()}}
}

// Validate checks that the reference names a kind and carries identifiers.
func (r Ref) Validate() error {
	if strings.TrimSpace(r.Type) == "" || len(r.Identifiers) == 0 {
		return ErrInvalidRef
	}
	return nil
}

// CanonicalIdentifiers encodes the identifiers as JSON with sorted keys so
// equal references always produce equal column values.
func (r Ref) CanonicalIdentifiers() (string, error) {
	if len(r.Identifiers) == 0 {
		return "", ErrInvalidRef
	}
	normalized := make(map[string]string, len(r.Identifiers))
	for key, value := range r.Identifiers {
		normalized[key] = fmt.Sprint(value)
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ID returns the snowflake "id" identifier.
func (r Ref) ID() (snowflake.ID, error) {
	value, ok := r.Identifiers["id"]
	if !ok {
		return 0, ErrInvalidRef
	}
	switch v := value.(type) {
	case snowflake.ID:
		return v, nil
	case int64:
		return snowflake.ID(v), nil
	case float64:
		return snowflake.ID(int64(v)), nil
	case json.Number:
		return snowflake.ParseString(v.String())
	case string:
		id, err := snowflake.ParseString(strings.TrimSpace(v))
		if err != nil {
			return 0, ErrInvalidRef
		}
		return id, nil
	default:
		return 0, ErrInvalidRef
	}
}

func (r Ref) String() string {
	ids, err := r.CanonicalIdentifiers()
	if err != nil {
		return r.Type
	}
	return r.Type + ids
}

// ParseRef rebuilds a reference from its persisted columns.
func ParseRef(kind, identifiers string) (Ref, error) {
	ref := Ref{Type: kind}
	if err := json.Unmarshal([]byte(identifiers), &ref.Identifiers); err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	return ref, ref.Validate()
}
