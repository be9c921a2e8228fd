package auth

import "context"

type Role string

const (
	RoleStudent Role = "student"
	RoleTA      Role = "ta"
)

// Identity is the signed-in user. Students carry their ERP; TAs are keyed by
// email alone.
type Identity struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	ERP   string `json:"erp,omitempty"`
	Name  string `json:"name,omitempty"`

	// TokenID is the jti of the session token, used for sign-out.
	TokenID string `json:"-"`
}

func (i Identity) IsTA() bool {
	return i.Role == RoleTA
}

func (i Identity) IsStudent() bool {
	return i.Role == RoleStudent && i.ERP != ""
}

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}
