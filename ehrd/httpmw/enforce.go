package httpmw

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mentalspace/ehr/ehrd/audit"
	"github.com/mentalspace/ehr/ehrd/httpapi"
	"github.com/mentalspace/ehr/ehrd/rbac"
)

// EnforceConfig wires the per-route access enforcement middleware.
type EnforceConfig struct {
	Engine  *rbac.Engine
	Auditor audit.Auditor
}

// EnforceClientAccess guards any route with a client id URL parameter. It
// runs the two-phase check: the gate resolves most roles immediately, and
// a provisional pass is verified against the assignment store before the
// handler ever runs. Denials and grants are both audited. A malformed or
// unknown id yields the same 403 as a denial, so the response never
// confirms that a client exists.
func EnforceClientAccess(cfg EnforceConfig, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actx := RequestAccessContext(r)

			clientID, err := uuid.Parse(chi.URLParam(r, param))
			if err != nil {
				httpapi.Forbidden(rw)
				return
			}

			gate := cfg.Engine.GateClientAccess(ctx, actx, clientID)
			granted := cfg.Engine.VerifyPendingAssignment(ctx, actx, gate)

			reason := "gate_" + string(gate.Decision)
			if gate.Decision == rbac.GatePendingVerification && !granted {
				reason = "pending_verification_failed"
			}
			_ = cfg.Auditor.Export(ctx, audit.AccessEvent{
				PrincipalID:  actx.UserID,
				ResourceType: rbac.ResourceClient,
				ResourceID:   clientID.String(),
				Action:       r.Method,
				Granted:      granted,
				Reason:       reason,
				RequestID:    RequestID(r),
			})
			if !granted {
				httpapi.Forbidden(rw)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

// EnforceResourceAccess guards a route addressing one appointment, note,
// or billing record by id. Resource existence is checked inside the
// decision, so a non-existent id denies identically to a forbidden one.
func EnforceResourceAccess(cfg EnforceConfig, resourceType, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actx := RequestAccessContext(r)

			id, err := uuid.Parse(chi.URLParam(r, param))
			if err != nil {
				httpapi.Forbidden(rw)
				return
			}

			err = cfg.Engine.Authorize(ctx, actx, resourceType, id)
			granted := err == nil
			reason := "granted"
			if rbac.IsForbidden(err) {
				reason = "denied"
			}
			_ = cfg.Auditor.Export(ctx, audit.AccessEvent{
				PrincipalID:  actx.UserID,
				ResourceType: resourceType,
				ResourceID:   id.String(),
				Action:       r.Method,
				Granted:      granted,
				Reason:       reason,
				RequestID:    RequestID(r),
			})
			if !granted {
				httpapi.Forbidden(rw)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}
