package api

import (
	"context"

	"github.com/terra-clan/pathway-engine/internal/models"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Principal is whoever a request was authenticated as: a service client
// holding an API key, or a trainee holding a bearer token.
type Principal struct {
	Name        string
	UserID      string // set for trainees only
	Permissions []string
	Client      *models.ApiClient
}

// IsTrainee reports whether the principal is a single trainee
func (p *Principal) IsTrainee() bool {
	return p != nil && p.UserID != ""
}

// HasPermission checks the principal's grants, wildcards included
func (p *Principal) HasPermission(required string) bool {
	if p == nil {
		return false
	}
	if p.Client != nil {
		return p.Client.HasPermission(required)
	}
	return models.MatchPermission(p.Permissions, required)
}

// CanAccessUser reports whether the principal may touch userID's records.
// Service clients may act for any user; trainees only for themselves.
func (p *Principal) CanAccessUser(userID string) bool {
	if p == nil {
		return false
	}
	return !p.IsTrainee() || p.UserID == userID
}

// PrincipalFromContext extracts the Principal from context
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// ContextWithPrincipal adds a Principal to context
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
