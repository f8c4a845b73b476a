// Package accountctx carries the authenticated customer identity through a
// request. Authentication itself lives in an upstream collaborator; the core
// only ever sees an opaque account ID on the context, never session state.
package accountctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type contextKey struct{}

func WithAccountID(ctx context.Context, accountID snowflake.ID) context.Context {
	return context.WithValue(ctx, contextKey{}, accountID)
}

func AccountIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(contextKey{}).(snowflake.ID)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
