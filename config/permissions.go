package config

import "p9e.in/reasonsform/models"

// Permission codes checked by middleware.RequirePermission.
const (
	PermClaimsRead   = "claims:read"
	PermClaimsCreate = "claims:create"
	PermClaimsUpdate = "claims:update"
	PermClaimsStatus = "claims:status"
	PermClaimsDelete = "claims:delete"
	PermClaimsExport = "claims:export"
	PermFilesRead    = "files:read"
	PermFilesWrite   = "files:write"
)

// RolePermissions maps an admin role to its permission patterns.
// Patterns support the wildcards understood by utils.MatchesPermission.
var RolePermissions = map[string][]string{
	models.RoleSuperAdmin: {"*"},
	models.RoleOperator:   {"claims:*", "files:*"},
	models.RoleViewer:     {"*:read", PermClaimsExport},
}
