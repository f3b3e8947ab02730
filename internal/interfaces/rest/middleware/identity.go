// Package middleware carries the identity propagation used by the HTTP API.
// Authentication itself happens at the edge; this service trusts the
// X-User-Id and X-User-Role headers the API gateway injects.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "ADMIN"

	contextUserID = "identity.user_id"
	contextRole   = "identity.role"
)

// Identity parses the identity headers into the request context. Requests
// without a valid user ID are rejected.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawID := c.Request().Header.Get(HeaderUserID)
			userID, err := uuid.Parse(rawID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]any{
					"success": false,
					"error": map[string]string{
						"code":    "UNAUTHENTICATED",
						"message": "missing or invalid " + HeaderUserID + " header",
					},
				})
			}

			c.Set(contextUserID, userID)
			c.Set(contextRole, c.Request().Header.Get(HeaderUserRole))
			return next(c)
		}
	}
}

// RequireAdmin gates admin-only routes.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsAdmin(c) {
				return c.JSON(http.StatusForbidden, map[string]any{
					"success": false,
					"error": map[string]string{
						"code":    "FORBIDDEN",
						"message": "admin role required",
					},
				})
			}
			return next(c)
		}
	}
}

func UserID(c echo.Context) uuid.UUID {
	if id, ok := c.Get(contextUserID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func IsAdmin(c echo.Context) bool {
	role, _ := c.Get(contextRole).(string)
	return role == RoleAdmin
}

// CanAccess reports whether the caller may read a resource owned by ownerID.
func CanAccess(c echo.Context, ownerID uuid.UUID) bool {
	return IsAdmin(c) || UserID(c) == ownerID
}
