package utils

import "strings"

// MatchPermission checks whether a granted permission pattern covers a
// required "resource_type:action" permission. Patterns may use '*' for the
// resource type, the action, or both ("document:*", "*:read", "*:*"). A
// bare "*" matches everything.
func MatchPermission(pattern, required string) bool {
	if pattern == required {
		return true
	}
	if pattern == "*" || pattern == "*:*" {
		return true
	}
	pRes, pAct, ok := splitPermission(pattern)
	if !ok {
		return false
	}
	rRes, rAct, ok := splitPermission(required)
	if !ok {
		return false
	}
	if pRes != "*" && pRes != rRes {
		return false
	}
	return pAct == "*" || pAct == rAct
}

func splitPermission(s string) (resource, action string, ok bool) {
	i := strings.Index(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// MatchFolderPattern checks a folder path against an accessible-path
// pattern. A trailing "/*" marks recursive access to the whole subtree;
// anything else must match exactly after trailing-slash normalization.
func MatchFolderPattern(pattern, path string) bool {
	pattern = trimTrailingSlash(pattern)
	path = trimTrailingSlash(path)
	if base, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == base || strings.HasPrefix(path, base+"/")
	}
	return path == pattern
}

func trimTrailingSlash(p string) string {
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
