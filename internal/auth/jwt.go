// Package auth verifies the bearer tokens issued by the identity provider.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

// Claims defines the payload carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// JWTManager verifies HMAC signed tokens. It can also mint tokens, which is
// used by local tooling and tests.
type JWTManager struct {
	secret   []byte
	ttl      time.Duration
	audience string
}

// Option customises a JWTManager.
type Option func(*JWTManager)

// WithAudience requires tokens to list aud among their audiences. Minted
// tokens carry it too.
func WithAudience(aud string) Option {
	return func(m *JWTManager) {
		m.audience = aud
	}
}

// NewJWTManager constructs a manager with the given secret and token lifetime.
func NewJWTManager(secret string, ttl time.Duration, opts ...Option) *JWTManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	m := &JWTManager{secret: []byte(secret), ttl: ttl}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateToken creates an access token for the provided subject.
func (m *JWTManager) GenerateToken(subject, email, role string) (string, error) {
	if len(m.secret) == 0 {
		return "", eris.New("auth: jwt secret must not be empty")
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: email,
		Role:  role,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return signed, nil
}

// ParseToken verifies the token signature, expiry and audience.
func (m *JWTManager) ParseToken(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "auth: parse token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, eris.New("auth: invalid token claims")
	}
	if claims.Subject == "" {
		return nil, eris.New("auth: token has no subject")
	}

	return claims, nil
}
