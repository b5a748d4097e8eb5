// Package auth issues and checks the admin JWTs that guard moderation routes.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
)

// Realm identifies the JWT authentication realm.
type Realm string

// RealmAdmin is the only realm today; players are not authenticated.
const RealmAdmin Realm = "admin"

const issuer = "gaminglibrary"

// Claims holds the custom JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Realm Realm  `json:"realm"`
	Role  string `json:"role,omitempty"` // viewer, admin, superadmin
}

// JWTManager handles token generation and validation.
type JWTManager struct {
	secret      []byte
	adminExpiry time.Duration
	clock       clock.Clock
}

// NewJWTManager creates a JWT manager. Token times come from clk.
func NewJWTManager(secret string, adminExpiry time.Duration, clk clock.Clock) *JWTManager {
	return &JWTManager{
		secret:      []byte(secret),
		adminExpiry: adminExpiry,
		clock:       clk,
	}
}

// GenerateAdminToken creates a signed admin token for subject with role.
func (m *JWTManager) GenerateAdminToken(subject, role string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if !ValidRole(role) {
		return "", fmt.Errorf("unknown admin role %q", role)
	}

	now := m.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.adminExpiry)),
			ID:        uuid.New().String(),
		},
		Realm: RealmAdmin,
		Role:  role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT, returning claims if valid.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// ValidateTokenForRealm validates a token and ensures it belongs to the expected realm.
func (m *JWTManager) ValidateTokenForRealm(tokenString string, expectedRealm Realm) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Realm != expectedRealm {
		return nil, fmt.Errorf("expected realm %s, got %s", expectedRealm, claims.Realm)
	}
	return claims, nil
}
