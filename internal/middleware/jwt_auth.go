package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	ctxActorID   = "actorID"
	ctxActorRole = "actorRole"
)

// Authenticator turns a bearer token into an actor identity
type Authenticator func(ctx context.Context, token string) (actorID, role string, err error)

// JWTAuthenticator accepts HS256 tokens carrying JwtCustomClaims.
func JWTAuthenticator(secret string) Authenticator {
	return func(_ context.Context, tokenString string) (string, string, error) {
		claims := &models.JwtCustomClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			return "", "", err
		}
		if !token.Valid || claims.UserID == "" {
			return "", "", errors.New("invalid token")
		}
		role := claims.Role
		if role == "" {
			role = models.RoleUser
		}
		return claims.UserID, role, nil
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}
	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// Authenticate tries each authenticator in order and stores the first identity found.
func Authenticate(authenticators ...Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return err
			}
			for _, authenticate := range authenticators {
				actorID, role, err := authenticate(c.Request().Context(), token)
				if err != nil {
					continue
				}
				c.Set(ctxActorID, actorID)
				c.Set(ctxActorRole, role)
				return next(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
	}
}

// JWTAuthMiddleware checks for a valid JWT and extracts the actor.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return Authenticate(JWTAuthenticator(secret))
}

// RequireRole rejects actors without role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ActorRole(c) != role {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient role")
			}
			return next(c)
		}
	}
}

// ActorID returns the authenticated actor, or "" outside authenticated routes.
func ActorID(c echo.Context) string {
	id, _ := c.Get(ctxActorID).(string)
	return id
}

func ActorRole(c echo.Context) string {
	role, _ := c.Get(ctxActorRole).(string)
	return role
}
