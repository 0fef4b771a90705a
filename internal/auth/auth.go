// Package auth decides whether a caller may manage documents.
//
// Tokens are JWTs issued by the host. When a signing secret is configured
// the signature is verified; otherwise the claims are read unverified, on
// the assumption that the host authenticated the request upstream.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fyrsmithlabs/docmanager/internal/settings"
)

// CookieName is the host's session cookie.
const CookieName = "ccat_user_token"

// QueryParam carries a token on URLs that cannot set headers.
const QueryParam = "token"

var (
	// ErrNoToken means the request carried no token at all.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken means the token could not be parsed or verified.
	ErrInvalidToken = errors.New("invalid token")
)

// Resources and permissions that grant administrative access.
var (
	AdminResources   = map[string]bool{"PLUGINS": true, "SETTINGS": true, "USERS": true, "MEMORY": true}
	AdminPermissions = map[string]bool{"EDIT": true, "DELETE": true, "WRITE": true}
)

// Identity is the caller as described by token claims.
type Identity struct {
	Subject     string
	Username    string
	Permissions map[string][]string
}

// HasAdminPermission reports whether any admin resource carries an admin
// permission.
func (id Identity) HasAdminPermission() bool {
	for resource, perms := range id.Permissions {
		if !AdminResources[strings.ToUpper(resource)] {
			continue
		}
		for _, p := range perms {
			if AdminPermissions[strings.ToUpper(p)] {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the identity is an administrator, either through
// its permissions or because its username or subject is listed in
// s.AdminUserIDs.
func (id Identity) IsAdmin(s settings.Settings) bool {
	return id.HasAdminPermission() || s.IsAdminID(id.Username) || s.IsAdminID(id.Subject)
}

// CommandAllowed decides access for chat commands. Callers without
// permissions fall back to the AdminOnlyAccess setting.
func CommandAllowed(id *Identity, s settings.Settings) bool {
	if id != nil {
		if len(id.Permissions) > 0 {
			return id.IsAdmin(s)
		}
		if s.IsAdminID(id.Username) || s.IsAdminID(id.Subject) {
			return true
		}
	}
	return !s.AdminOnlyAccess
}

// Verifier parses host tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier. An empty secret disables signature
// verification.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}
}

// Verifies reports whether signatures are checked.
func (v *Verifier) Verifies() bool { return len(v.secret) > 0 }

// Parse extracts the identity from a token.
func (v *Verifier) Parse(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if v.Verifies() {
		parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return v.secret, nil
		})
		if err != nil || !parsed.Valid {
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return identityFromClaims(claims), nil
}

// FromRequest reads the token from the Authorization header, the session
// cookie or the token query parameter, in that order, and parses it.
func (v *Verifier) FromRequest(r *http.Request) (Identity, error) {
	return v.Parse(TokenFromRequest(r))
}

// TokenFromRequest returns the request's token or "".
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	return r.URL.Query().Get(QueryParam)
}

func identityFromClaims(claims jwt.MapClaims) Identity {
	id := Identity{Permissions: map[string][]string{}}
	id.Subject, _ = claims.GetSubject()
	if name, ok := claims["username"].(string); ok {
		id.Username = name
	}
	if perms, ok := claims["permissions"].(map[string]any); ok {
		for resource, raw := range perms {
			id.Permissions[resource] = stringList(raw)
		}
	}
	return id
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}

type identityKey struct{}

// WithIdentity stores the caller in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// SignToken issues an HS256 token. It is used by the CLI and tests to
// produce host-shaped tokens.
func SignToken(secret []byte, subject, username string, permissions map[string][]string) (string, error) {
	claims := jwt.MapClaims{"sub": subject, "username": username}
	if len(permissions) > 0 {
		claims["permissions"] = permissions
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
