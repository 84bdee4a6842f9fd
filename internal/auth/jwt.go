// Package auth is the identity and role guard: it resolves a
// connecting client's authenticated identity and role from a JWT and
// decides whether an event's required tier is satisfied.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Role is the authenticated caller's role claim.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Tier is the authorization level an event requires.
type Tier int

const (
	// TierAuthenticated admits any valid identity. Events at this
	// tier that act on an existing meeting perform a stronger
	// host-identity check inside the handler.
	TierAuthenticated Tier = iota
	// TierAdminOrStudent admits the administrator-operator or any
	// authenticated student.
	TierAdminOrStudent
	// TierStudent admits student identities only.
	TierStudent
)

// Allows reports whether a role satisfies the tier.
func (t Tier) Allows(r Role) bool {
	switch t {
	case TierAuthenticated:
		return r == RoleAdmin || r == RoleStudent
	case TierAdminOrStudent:
		return r == RoleAdmin || r == RoleStudent
	case TierStudent:
		return r == RoleStudent
	default:
		return false
	}
}

// Identity is the resolved caller: who they are and what tier checks
// run against.
type Identity struct {
	UserID string
	Role   Role
}

// Claims are the JWT claims the gateway issues and accepts.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid token")

// IssueToken signs an HS256 token for the given identity.
func IssueToken(secret, userID string, role Role, lifetime time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a token string and returns the identity it
// carries.
func ParseToken(secret, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, errInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, errInvalidToken
	}

	role := Role(claims.Role)
	if role != RoleAdmin && role != RoleStudent {
		return Identity{}, errInvalidToken
	}
	return Identity{UserID: claims.UserID, Role: role}, nil
}

const identityKey = "identity"

// Middleware validates the Bearer token and stores the caller's
// Identity in the gin context.
func Middleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		identity, err := ParseToken(jwtSecret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the Identity stored by Middleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}
