package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/pathway-engine/internal/auth"
	"github.com/terra-clan/pathway-engine/internal/models"
)

// ClientStore looks up API clients
type ClientStore interface {
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error
}

// traineePermissions is granted to tokens that carry no scopes claim
var traineePermissions = []string{
	"activities:*",
	"tasks:*",
	"events:*",
	"profile:*",
	"dashboard:read",
	"catalog:read",
}

// AuthMiddleware authenticates API keys and trainee bearer tokens
type AuthMiddleware struct {
	clients ClientStore
	tokens  auth.Config
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(clients ClientStore, tokens auth.Config) *AuthMiddleware {
	return &AuthMiddleware{clients: clients, tokens: tokens}
}

// Authenticate resolves the request's principal.
// Supports "Bearer <key|jwt>", a raw key in Authorization, or X-API-Key.
// A three-segment bearer value is verified as a token when token
// verification is configured; anything else is looked up as an API key.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := extractCredential(r)
		if credential == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing credentials", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		var principal *Principal
		if m.tokens.Enabled() && auth.LooksLikeJWT(credential) {
			principal = m.authenticateToken(w, r, credential)
		} else {
			principal = m.authenticateKey(w, r, credential)
		}
		if principal == nil {
			return
		}

		ctx := ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticateToken(w http.ResponseWriter, r *http.Request, token string) *Principal {
	claims, err := auth.Parse(token, m.tokens)
	if err != nil {
		slog.Warn("invalid bearer token", "error", err, "remote_addr", r.RemoteAddr)
		writeAuthError(w, http.StatusUnauthorized, "invalid token", "the provided token is not valid")
		return nil
	}

	permissions := claims.Scopes
	if len(permissions) == 0 {
		permissions = traineePermissions
	}

	slog.Debug("authenticated trainee", "user_id", claims.Subject)
	return &Principal{
		Name:        "trainee:" + claims.Subject,
		UserID:      claims.Subject,
		Permissions: permissions,
	}
}

func (m *AuthMiddleware) authenticateKey(w http.ResponseWriter, r *http.Request, apiKey string) *Principal {
	client, err := m.clients.GetClientByApiKey(r.Context(), apiKey)
	if err != nil {
		slog.Error("failed to lookup api client", "error", err, "key_prefix", maskKey(apiKey))
		writeAuthError(w, http.StatusInternalServerError, "authentication error", "internal server error")
		return nil
	}

	if client == nil {
		slog.Warn("invalid api key attempt", "key_prefix", maskKey(apiKey), "remote_addr", r.RemoteAddr)
		writeAuthError(w, http.StatusUnauthorized, "invalid api key", "the provided api key is not valid")
		return nil
	}

	if !client.IsActive {
		slog.Warn("inactive client attempt", "client", client.Name, "key_prefix", maskKey(apiKey))
		writeAuthError(w, http.StatusUnauthorized, "client inactive", "this api key has been deactivated")
		return nil
	}

	// Update last_used_at asynchronously (don't block request)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.clients.UpdateClientLastUsed(ctx, apiKey); err != nil {
			slog.Error("failed to update client last_used_at", "error", err, "client", client.Name)
		}
	}()

	slog.Debug("authenticated request", "client", client.Name, "key_prefix", client.MaskedApiKey())
	return &Principal{
		Name:        client.Name,
		Permissions: client.Permissions,
		Client:      client,
	}
}

// RequirePermission returns middleware that checks for specific permission
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated", "authentication required")
				return
			}

			if !p.HasPermission(permission) {
				slog.Warn("permission denied",
					"principal", p.Name,
					"required", permission,
					"has", p.Permissions,
				)
				writeAuthError(w, http.StatusForbidden, "permission denied",
					"missing required permission: "+permission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUserAccess rejects trainees reaching into another user's records
func (m *AuthMiddleware) RequireUserAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			writeAuthError(w, http.StatusUnauthorized, "not authenticated", "authentication required")
			return
		}

		userID := chi.URLParam(r, "userID")
		if !p.CanAccessUser(userID) {
			slog.Warn("cross-user access denied", "principal", p.Name, "user_id", userID)
			writeAuthError(w, http.StatusForbidden, "permission denied", "trainees may only access their own records")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractCredential extracts the API key or token from request headers
func extractCredential(r *http.Request) string {
	// Try Authorization header first
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Handle "Bearer xxx" format
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}
		// Handle raw key in Authorization header
		return strings.TrimSpace(authHeader)
	}

	// Fallback to X-API-Key header
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}

// writeAuthError writes an auth failure in the standard envelope
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	respondError(w, status, strings.ReplaceAll(code, " ", "_"), message)
}
