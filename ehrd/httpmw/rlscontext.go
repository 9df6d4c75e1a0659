package httpmw

import (
	"context"
	"net/http"

	"cdr.dev/slog"
	"github.com/google/uuid"

	"github.com/mentalspace/ehr/ehrd/httpapi"
	"github.com/mentalspace/ehr/ehrd/rbac"
)

type accessContextKey struct{}

// RequestAccessContext returns the permission snapshot built for this
// request.
func RequestAccessContext(r *http.Request) rbac.Context {
	actx, ok := r.Context().Value(accessContextKey{}).(rbac.Context)
	if !ok {
		panic("developer error: access context middleware not provided")
	}
	return actx
}

// ExtractAccessContext derives the per-request permission snapshot from
// the authenticated principal. It must run after ExtractPrincipal. The
// snapshot is rebuilt on every request so assignment changes take effect
// immediately.
func ExtractAccessContext(store rbac.Store, log slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := RequestPrincipal(r)

			actx, err := rbac.BuildContext(ctx, store, principal)
			if err != nil {
				// Build failures deny: a principal without a resolvable
				// permission snapshot gets no PHI.
				log.Warn(ctx, "build access context", slog.Error(err))
				httpapi.Forbidden(rw)
				return
			}

			ctx = context.WithValue(ctx, accessContextKey{}, actx)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}
