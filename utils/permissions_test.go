package utils

import "testing"

func TestMatchesPermission(t *testing.T) {
	tests := []struct {
		name     string
		granted  string
		required string
		expected bool
	}{
		{"exact match", "claims:read", "claims:read", true},
		{"different action", "claims:read", "claims:delete", false},
		{"different resource", "claims:read", "files:read", false},

		{"full wildcard", "*", "claims:delete", true},
		{"full wildcard non-standard perm", "*", "anything", true},

		{"resource wildcard create", "claims:*", "claims:create", true},
		{"resource wildcard status", "claims:*", "claims:status", true},
		{"resource wildcard other resource", "claims:*", "files:write", false},

		{"action wildcard claims", "*:read", "claims:read", true},
		{"action wildcard files", "*:read", "files:read", true},
		{"action wildcard write", "*:read", "files:write", false},

		{"scope segment ignored", "claims:read", "claims:read:own", true},

		{"single part exact", "admin", "admin", true},
		{"single part vs multi-part", "admin", "admin:read", false},
		{"empty required", "claims:read", "", false},
		{"empty granted", "", "claims:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesPermission(tt.granted, tt.required); got != tt.expected {
				t.Errorf("MatchesPermission(%q, %q) = %v, expected %v", tt.granted, tt.required, got, tt.expected)
			}
		})
	}
}

func BenchmarkMatchesPermission_Wildcard(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("claims:*", "claims:update")
	}
}

func BenchmarkMatchesPermission_NoMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("*:read", "claims:delete")
	}
}
