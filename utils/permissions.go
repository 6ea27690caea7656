package utils

import "strings"

// MatchesPermission reports whether a granted pattern covers the required
// "resource:action" permission.
//
//   - "*" matches everything
//   - "claims:*" matches every action on claims
//   - "*:read" matches read on every resource
//   - anything else must match exactly
//
// A third ":scope" segment, if present, is ignored.
func MatchesPermission(granted, required string) bool {
	if granted == required || granted == "*" {
		return true
	}

	g := strings.Split(granted, ":")
	req := strings.Split(required, ":")
	if len(g) < 2 || len(req) < 2 {
		return false
	}
	return (g[0] == "*" || g[0] == req[0]) && (g[1] == "*" || g[1] == req[1])
}
