package httpmw

import (
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

const (
	// PortalTokenIssuer is the iss claim minted by the portal login service.
	PortalTokenIssuer = "mentalspace-ehr"
	// PortalTokenAudience scopes portal tokens away from any staff surface.
	PortalTokenAudience = "portal"
	// PortalTokenType is the token-type claim that marks a client portal
	// credential. A staff token can never carry it.
	PortalTokenType = "client_portal"
)

// PortalClaims is the payload of a client portal JWT.
type PortalClaims struct {
	jwt.RegisteredClaims
	// Type must be PortalTokenType.
	Type string `json:"type"`
	// ClientID is the owning client record.
	ClientID uuid.UUID `json:"client_id"`
}

// ParsePortalToken verifies signature, expiry, issuer, audience, and token
// type. It returns the client id baked into the token; it does NOT check
// account status, which can change after the token was minted and is
// re-checked on every request.
func ParsePortalToken(token string, secret []byte) (PortalClaims, error) {
	var claims PortalClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, xerrors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return PortalClaims{}, xerrors.Errorf("parse portal token: %w", err)
	}
	if !claims.VerifyIssuer(PortalTokenIssuer, true) {
		return PortalClaims{}, xerrors.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if !claims.VerifyAudience(PortalTokenAudience, true) {
		return PortalClaims{}, xerrors.New("token not scoped to the portal audience")
	}
	if claims.Type != PortalTokenType {
		return PortalClaims{}, xerrors.Errorf("unexpected token type %q", claims.Type)
	}
	if claims.ClientID == uuid.Nil {
		return PortalClaims{}, xerrors.New("portal token has no client id")
	}
	return claims, nil
}
