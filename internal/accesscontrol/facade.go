package accesscontrol

import (
	"context"
	"strconv"
	"time"
)

// TierPolicy is the limit/window pair configured for one tier.
type TierPolicy struct {
	Limit  int64
	Window time.Duration
}

// FacadePolicies configures which tiers the facade evaluates. A tier with a
// zero limit is skipped.
type FacadePolicies struct {
	APIKey TierPolicy
	User   TierPolicy
	IP     TierPolicy
}

// AuthResult carries the authenticated context together with the rate-limit
// statuses the transport layer renders into response headers.
type AuthResult struct {
	Context   *SecurityContext
	RateLimit RateResult
}

// Facade is the single entry point the request pipeline calls before any
// authorization check. It composes token validation, rate limiting and the
// role guard.
type Facade struct {
	tokens   *TokenService
	limiter  *RateLimiter
	guard    RoleGuard
	policies FacadePolicies
}

// NewFacade assembles the access-control entry point.
func NewFacade(tokens *TokenService, limiter *RateLimiter, policies FacadePolicies) *Facade {
	return &Facade{tokens: tokens, limiter: limiter, guard: NewRoleGuard(), policies: policies}
}

// Authenticate validates the bearer token, builds the security context and
// applies every configured rate-limit tier. Authentication failures surface
// as ErrUnauthenticated; tier denials as a RateLimitError carrying retry
// metadata.
func (f *Facade) Authenticate(ctx context.Context, rawToken, clientIP, apiKeyID string) (*AuthResult, error) {
	claims, err := f.tokens.ValidateAccess(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	secCtx := NewSecurityContext(claims.UserID, claims.Role, claims.TokenID, map[string]string{
		"client_ip": clientIP,
	})

	checks := f.buildChecks(claims.UserID, clientIP, apiKeyID)
	result, err := f.limiter.CheckAll(ctx, checks)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return nil, &RateLimitError{Status: result.Restrictive}
	}

	return &AuthResult{Context: secCtx, RateLimit: result}, nil
}

func (f *Facade) buildChecks(userID int64, clientIP, apiKeyID string) []RateCheck {
	var checks []RateCheck
	if apiKeyID != "" && f.policies.APIKey.Limit > 0 {
		checks = append(checks, RateCheck{
			Tier: TierAPIKey, Key: apiKeyID,
			Limit: f.policies.APIKey.Limit, Window: f.policies.APIKey.Window,
		})
	}
	if f.policies.User.Limit > 0 {
		checks = append(checks, RateCheck{
			Tier: TierUser, Key: strconv.FormatInt(userID, 10),
			Limit: f.policies.User.Limit, Window: f.policies.User.Window,
		})
	}
	if clientIP != "" && f.policies.IP.Limit > 0 {
		checks = append(checks, RateCheck{
			Tier: TierIP, Key: clientIP,
			Limit: f.policies.IP.Limit, Window: f.policies.IP.Window,
		})
	}
	return checks
}

// Tokens exposes the token service for issue/refresh/revoke flows.
func (f *Facade) Tokens() *TokenService { return f.tokens }

// Guard exposes the role-hierarchy decision table.
func (f *Facade) Guard() RoleGuard { return f.guard }
