package middleware

import (
	"net/http"

	"p9e.in/reasonsform/config"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/utils"
)

// HasPermission reports whether role grants permission.
func HasPermission(role, permission string) bool {
	for _, p := range config.RolePermissions[role] {
		if utils.MatchesPermission(p, permission) {
			return true
		}
	}
	return false
}

// RequirePermission middleware checks if the authenticated admin has the required permission
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				apperr.Write(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "unauthorized", "")
				return
			}
			if !HasPermission(claims.Role, permission) {
				apperr.Write(w, http.StatusForbidden, apperr.CodeForbidden, "insufficient permissions", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PermissionsFor lists the patterns granted to role.
func PermissionsFor(role string) []string {
	perms := config.RolePermissions[role]
	if perms == nil {
		return []string{}
	}
	return perms
}

// Permissions lists the patterns granted to the admin behind r.
func Permissions(r *http.Request) []string {
	claims := GetClaims(r)
	if claims == nil {
		return []string{}
	}
	return PermissionsFor(claims.Role)
}
