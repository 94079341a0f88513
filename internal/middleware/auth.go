package middleware

import (
	"jewelry-checkout/internal/dto"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"

	tokenContextKey = "user"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies an HS256 bearer token. The user id is the subject claim.
func Auth(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Name,
		ContextKey:    tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, &dto.ErrorResponse{
				Error: "missing or invalid token",
				Code:  "UNAUTHORIZED",
			})
		},
	})
}

func claimsFrom(c echo.Context) *Claims {
	token, ok := c.Get(tokenContextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, _ := token.Claims.(*Claims)
	return claims
}

// UserID returns the verified user id, or "" for anonymous requests.
func UserID(c echo.Context) string {
	claims := claimsFrom(c)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

func IsAdmin(c echo.Context) bool {
	claims := claimsFrom(c)
	return claims != nil && claims.Role == RoleAdmin
}

func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsAdmin(c) {
				return c.JSON(http.StatusForbidden, &dto.ErrorResponse{
					Error: "admin role required",
					Code:  "FORBIDDEN",
				})
			}
			return next(c)
		}
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through. Invalid tokens are still rejected.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	auth := Auth(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := auth(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			return withAuth(c)
		}
	}
}

func IssueToken(secret, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
