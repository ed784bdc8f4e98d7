package accesscontrol

import "github.com/spec-kit/account-service/internal/domain"

// SecurityContext is the request-scoped identity threaded through every
// authorization decision. It is constructed once after authentication and
// never persisted; authorization logic sees only this, never transport or
// session state.
type SecurityContext struct {
	userID   int64
	role     domain.Role
	tokenID  string
	metadata map[string]string
}

// NewSecurityContext builds an authenticated context.
func NewSecurityContext(userID int64, role domain.Role, tokenID string, metadata map[string]string) *SecurityContext {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &SecurityContext{userID: userID, role: role, tokenID: tokenID, metadata: metadata}
}

// AnonymousContext builds a context with no identity.
func AnonymousContext() *SecurityContext {
	return &SecurityContext{metadata: map[string]string{}}
}

// Authenticated reports whether the context carries an identity.
func (c *SecurityContext) Authenticated() bool { return c.role != "" }

// UserID returns the acting user's id; zero for anonymous contexts.
func (c *SecurityContext) UserID() int64 { return c.userID }

// Role returns the acting user's role; empty for anonymous contexts.
func (c *SecurityContext) Role() domain.Role { return c.role }

// TokenID returns the identifier of the access token that authenticated
// this request.
func (c *SecurityContext) TokenID() string { return c.tokenID }

// Metadata returns the value stored under key, if any.
func (c *SecurityContext) Metadata(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}
