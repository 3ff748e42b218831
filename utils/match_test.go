package utils

import "testing"

func TestMatchPermission(t *testing.T) {
	cases := []struct {
		pattern, required string
		want              bool
	}{
		{"document:read", "document:read", true},
		{"document:read", "document:update", false},
		{"document:*", "document:read", true},
		{"document:*", "user:read", false},
		{"*:read", "document:read", true},
		{"*:read", "document:update", false},
		{"*:*", "anything:at_all", true},
		{"*", "anything:at_all", true},
		{"document", "document:read", false},
		{"document:", "document:read", false},
		{":read", "document:read", false},
	}
	for _, tc := range cases {
		if got := MatchPermission(tc.pattern, tc.required); got != tc.want {
			t.Fatalf("MatchPermission(%q, %q) = %v, want %v", tc.pattern, tc.required, got, tc.want)
		}
	}
}

func TestMatchFolderPattern(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/documents/rh", "/documents/rh", true},
		{"/documents/rh", "/documents/rh/", true},
		{"/documents/rh", "/documents/rh/sub", false},
		{"/documents/rh/*", "/documents/rh", true},
		{"/documents/rh/*", "/documents/rh/sub/deep", true},
		{"/documents/rh/*", "/documents/rh-legacy", false},
		{"/documents/rh/*", "/documents/finance", false},
	}
	for _, tc := range cases {
		if got := MatchFolderPattern(tc.pattern, tc.path); got != tc.want {
			t.Fatalf("MatchFolderPattern(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
