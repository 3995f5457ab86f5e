// Package auth verifies and issues the HS256 bearer tokens trainees use.
// Service clients authenticate with API keys instead; see the api package.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds signer verification parameters
type Config struct {
	Secret string
	Issuer string
}

// Enabled reports whether token verification is configured
func (c Config) Enabled() bool {
	return c.Secret != ""
}

// Claims is the normalized token payload
type Claims struct {
	Subject   string
	Scopes    []string
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned for an empty token
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken wraps parsing and validation errors
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Parse validates token and returns its claims. The subject is the
// trainee's user id.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: token verification not configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}

	return &Claims{
		Subject:   subject,
		Scopes:    normalizeScopes(claims["scopes"]),
		ExpiresAt: exp.Time,
	}, nil
}

// Issue signs a token for subject. Used by the dev tooling and tests.
func Issue(cfg Config, subject string, scopes []string, ttl time.Duration) (string, error) {
	if !cfg.Enabled() {
		return "", fmt.Errorf("token signing not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	if len(scopes) > 0 {
		claims["scopes"] = scopes
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// LooksLikeJWT reports whether a bearer value has the three-segment JWT
// shape, which API keys never have.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func normalizeScopes(value interface{}) []string {
	var out []string
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
	case string:
		for _, str := range strings.Fields(v) {
			out = append(out, str)
		}
	}
	return out
}
