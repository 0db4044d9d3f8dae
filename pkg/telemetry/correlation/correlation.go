// Package correlation carries the id that ties a command to the queued jobs
// it produced and to every log line and span they emit.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type key struct{}

// ID returns the correlation id on ctx, or "".
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(key{}).(string)
	return id
}

// With returns ctx carrying id. A blank id leaves ctx unchanged.
func With(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key{}, id)
}

// Ensure returns ctx with a correlation id, minting a ULID when none is set.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := ID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return With(ctx, id), id
}

// Continue resumes work correlated elsewhere, such as a job stored with the
// id of the command that queued it. A stored id takes precedence over the
// one on ctx.
func Continue(ctx context.Context, stored string) (context.Context, string) {
	if strings.TrimSpace(stored) != "" {
		ctx = With(ctx, stored)
	}
	return Ensure(ctx)
}
