package httpapi

import (
	"context"

	"github.com/and161185/bookshelf/internal/service"
)

type ctxKey string

const principalKey ctxKey = "bookshelf.principal"

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the principal from context.
func PrincipalFromCtx(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(principalKey).(service.Principal)
	return p, ok
}
