package httpmw

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"cdr.dev/slog"
	"golang.org/x/xerrors"

	"github.com/mentalspace/ehr/cryptorand"
	"github.com/mentalspace/ehr/ehrd/database"
	"github.com/mentalspace/ehr/ehrd/database/dbtime"
	"github.com/mentalspace/ehr/ehrd/httpapi"
	"github.com/mentalspace/ehr/ehrd/rbac"
)

// SessionTokenCookie is the cookie both staff and portal tokens may
// arrive in. The Authorization header takes precedence when both are set.
const SessionTokenCookie = "ehr_session_token"

type principalContextKey struct{}

// RequestPrincipal returns the authenticated principal.
func RequestPrincipal(r *http.Request) rbac.Principal {
	principal, ok := r.Context().Value(principalContextKey{}).(rbac.Principal)
	if !ok {
		panic("developer error: auth middleware not provided")
	}
	return principal
}

// AuthConfig wires the dual-path authenticator.
type AuthConfig struct {
	DB database.Store
	// PortalSecret signs client portal JWTs.
	PortalSecret []byte
	Log          slog.Logger
}

// ExtractPrincipal authenticates the request by credential shape: a JWT is
// routed down the portal path, anything else down the staff session path.
// Exactly one path runs; a credential can never be retried against the
// other path. Every failure, whatever the cause, produces the same 401.
func ExtractPrincipal(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := TokenFromRequest(r)
			if token == "" {
				httpapi.Unauthorized(rw)
				return
			}

			var (
				principal rbac.Principal
				err       error
			)
			if looksLikeJWT(token) {
				principal, err = authenticatePortal(ctx, cfg, token)
			} else {
				principal, err = authenticateStaff(ctx, cfg, token)
			}
			if err != nil {
				// The reason stays server side; the response never
				// distinguishes a bad signature from a suspended account.
				cfg.Log.Debug(ctx, "request not authenticated", slog.Error(err))
				httpapi.Unauthorized(rw)
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, principal)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if bearer, ok := strings.CutPrefix(header, "Bearer "); ok {
		return bearer
	}
	cookie, err := r.Cookie(SessionTokenCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// looksLikeJWT routes by shape. A staff token is "<id>-<secret>" and can
// never contain a dot; a JWT always contains exactly two.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func authenticatePortal(ctx context.Context, cfg AuthConfig, token string) (rbac.Principal, error) {
	claims, err := ParsePortalToken(token, cfg.PortalSecret)
	if err != nil {
		return rbac.Principal{}, err
	}

	// Account status is live state, not token state. A suspended or
	// revoked account invalidates an otherwise valid token immediately.
	account, err := cfg.DB.GetPortalAccountByClientID(ctx, claims.ClientID)
	if database.IsNotFound(err) {
		return rbac.Principal{}, xerrors.New("no portal account for client")
	}
	if err != nil {
		return rbac.Principal{}, xerrors.Errorf("lookup portal account: %w", err)
	}
	if account.Status != database.PortalAccountStatusActive {
		return rbac.Principal{}, xerrors.Errorf("portal account status %q", account.Status)
	}
	if !account.PortalAccessGranted {
		return rbac.Principal{}, xerrors.New("portal access not granted")
	}

	// A discharged or inactive client keeps its portal account row but
	// loses access.
	client, err := cfg.DB.GetClientByID(ctx, claims.ClientID)
	if database.IsNotFound(err) {
		return rbac.Principal{}, xerrors.New("no client record for portal account")
	}
	if err != nil {
		return rbac.Principal{}, xerrors.Errorf("lookup client: %w", err)
	}
	if client.Status != database.ClientStatusActive {
		return rbac.Principal{}, xerrors.Errorf("client status %q", client.Status)
	}

	return rbac.Principal{
		ID:       account.ID,
		Roles:    []rbac.Role{rbac.RolePortalClient},
		ClientID: nullUUID(claims.ClientID),
	}, nil
}

func authenticateStaff(ctx context.Context, cfg AuthConfig, token string) (rbac.Principal, error) {
	id, secret, err := SplitSessionToken(token)
	if err != nil {
		return rbac.Principal{}, err
	}

	session, err := cfg.DB.GetSessionByID(ctx, id)
	if database.IsNotFound(err) {
		return rbac.Principal{}, xerrors.New("session not found")
	}
	if err != nil {
		return rbac.Principal{}, xerrors.Errorf("lookup session: %w", err)
	}
	hashedSecret := sha256.Sum256([]byte(secret))
	if subtle.ConstantTimeCompare(session.HashedSecret, hashedSecret[:]) != 1 {
		return rbac.Principal{}, xerrors.New("session secret mismatch")
	}
	now := dbtime.Now()
	if session.ExpiresAt.Before(now) {
		return rbac.Principal{}, xerrors.New("session expired")
	}

	user, err := cfg.DB.GetUserByID(ctx, session.UserID)
	if err != nil {
		return rbac.Principal{}, xerrors.Errorf("lookup session user: %w", err)
	}
	if user.Status != database.UserStatusActive {
		return rbac.Principal{}, xerrors.Errorf("user status %q", user.Status)
	}

	roles := rbac.NormalizeRoles(user.Role, user.Roles)
	if len(roles) == 0 {
		return rbac.Principal{}, xerrors.New("user has no recognized role")
	}

	// Only update LastUsed once an hour to prevent database spam.
	if now.Sub(session.LastUsed) > time.Hour {
		err = cfg.DB.UpdateSessionLastUsed(ctx, database.UpdateSessionLastUsedParams{
			ID:       session.ID,
			LastUsed: now,
		})
		if err != nil {
			return rbac.Principal{}, xerrors.Errorf("update session last used: %w", err)
		}
	}

	return rbac.Principal{
		ID:             user.ID,
		Roles:          roles,
		OrganizationID: user.OrganizationID,
	}, nil
}

const (
	sessionIDLength     = 10
	sessionSecretLength = 22
)

// GenerateSessionToken mints a staff session credential. The wire token
// goes to the user; the store keeps only the id and the secret's hash.
func GenerateSessionToken() (token string, id string, hashedSecret []byte, err error) {
	id, err = cryptorand.String(sessionIDLength)
	if err != nil {
		return "", "", nil, xerrors.Errorf("generate session id: %w", err)
	}
	secret, err := cryptorand.String(sessionSecretLength)
	if err != nil {
		return "", "", nil, xerrors.Errorf("generate session secret: %w", err)
	}
	hashed := sha256.Sum256([]byte(secret))
	return id + "-" + secret, id, hashed[:], nil
}

// SplitSessionToken splits a staff token of the form "<id>-<secret>" into
// its parts, validating the lengths minted by the session service.
func SplitSessionToken(token string) (id string, secret string, err error) {
	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return "", "", xerrors.Errorf("token has %d parts, expected 2", len(parts))
	}
	if len(parts[0]) != sessionIDLength {
		return "", "", xerrors.Errorf("token id has length %d, expected %d", len(parts[0]), sessionIDLength)
	}
	if len(parts[1]) != sessionSecretLength {
		return "", "", xerrors.Errorf("token secret has length %d, expected %d", len(parts[1]), sessionSecretLength)
	}
	return parts[0], parts[1], nil
}
