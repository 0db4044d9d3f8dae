package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/reference"
)

// parseRef reads an entity reference written as "kind:id" or
// "kind:{json identifiers}".
func parseRef(raw string) (reference.Ref, error) {
	kind, rest, ok := strings.Cut(strings.TrimSpace(raw), ":")
	kind = strings.TrimSpace(kind)
	rest = strings.TrimSpace(rest)
	if !ok || kind == "" || rest == "" {
		return reference.Ref{}, fmt.Errorf("%w: %q, want kind:id", reference.ErrInvalidRef, raw)
	}

	if strings.HasPrefix(rest, "{") {
		ref := reference.Ref{Type: kind}
		if err := json.Unmarshal([]byte(rest), &ref.Identifiers); err != nil {
			return reference.Ref{}, fmt.Errorf("%w: %v", reference.ErrInvalidRef, err)
		}
		return ref, ref.Validate()
	}

	id, err := snowflake.ParseString(rest)
	if err != nil {
		return reference.Ref{}, fmt.Errorf("%w: %q: %v", reference.ErrInvalidRef, rest, err)
	}
	return reference.NewRef(kind, id), nil
}

// parseParams turns repeated --param name=value flags into raw parameters.
// Values stay strings; the facade coerces them to the declared types.
func parseParams(raw map[string]string) domain.Params {
	params := make(domain.Params, len(raw))
	for name, value := range raw {
		params[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return params
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return id, nil
}
