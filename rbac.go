package authz

import (
	"context"
	"fmt"
	"sort"

	"github.com/axdbertuol/authz/logger"
)

// RoleInheritanceResolver computes effective permissions over the role
// graph. It is pure: callers hand it the role ids, the role set, and a
// role-to-permissions lookup already fetched from the stores.
type RoleInheritanceResolver struct{}

// EffectivePermissions unions the permissions of each assigned active role
// and all of its active ancestors, dropping inactive permissions. The
// result is deduplicated and sorted for determinism. Parent chains stop at
// a missing or already-visited id, so cyclic data terminates.
func (RoleInheritanceResolver) EffectivePermissions(roleIDs []string, hierarchy []*Role, rolePerms map[string][]*Permission) []string {
	index := indexRoles(hierarchy)
	seen := make(map[string]bool)
	out := make([]string, 0, 8)

	collect := func(roleID string) {
		for _, p := range rolePerms[roleID] {
			if p == nil || !p.IsActive {
				continue
			}
			name := p.FullName()
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}

	for _, id := range roleIDs {
		role, ok := index[id]
		if !ok || !role.IsActive {
			continue
		}
		visited := map[string]bool{role.ID: true}
		collect(role.ID)
		current := role.ParentRoleID
		for current != "" && !visited[current] {
			visited[current] = true
			ancestor, ok := index[current]
			if !ok {
				break
			}
			if ancestor.IsActive {
				collect(ancestor.ID)
			}
			current = ancestor.ParentRoleID
		}
	}
	sort.Strings(out)
	return out
}

// RBACResolver answers "does any of the user's roles grant this
// permission". Wildcard grants are honored in a fixed order: exact match,
// then resource:*, then *:action, then *:*.
type RBACResolver struct {
	roles       RoleStore
	memberships RoleMembershipStore
	permissions PermissionStore
	inheritance RoleInheritanceResolver
	logger      logger.Logger
}

func NewRBACResolver(roles RoleStore, memberships RoleMembershipStore, permissions PermissionStore, log logger.Logger) *RBACResolver {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RBACResolver{roles: roles, memberships: memberships, permissions: permissions, logger: log}
}

// UserPermissions resolves the user's full effective permission set in the
// organization, inheritance included.
func (r *RBACResolver) UserPermissions(ctx context.Context, userID, orgID string) ([]string, error) {
	roleIDs, err := r.memberships.ListRoleIDs(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list role memberships: %w", err)
	}
	return r.permissionsForRoles(ctx, roleIDs, orgID)
}

// permissionsForRoles resolves effective permissions for an already-fetched
// membership list, so Authorize does not hit the membership store twice.
func (r *RBACResolver) permissionsForRoles(ctx context.Context, roleIDs []string, orgID string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	hierarchy, err := r.roles.ListRoles(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	rolePerms := make(map[string][]*Permission, len(hierarchy))
	for _, role := range hierarchy {
		perms, err := r.permissions.ListRolePermissions(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("list permissions for role %s: %w", role.ID, err)
		}
		rolePerms[role.ID] = perms
	}
	return r.inheritance.EffectivePermissions(roleIDs, hierarchy, rolePerms), nil
}

// Authorize grants or denies the requested resource_type:action. Store
// failures fail closed into a Deny with an authorization_error reason.
func (r *RBACResolver) Authorize(ctx context.Context, ac *AuthorizationContext) *AuthorizationDecision {
	roleIDs, err := r.memberships.ListRoleIDs(ctx, ac.UserID, ac.OrganizationID)
	if err != nil {
		r.logger.Error("rbac membership lookup failed", "user_id", ac.UserID, "error", err.Error())
		return Deny(Reason(ReasonAuthorizationError, "role membership lookup failed", nil))
	}
	if len(roleIDs) == 0 {
		return Deny(Reason(ReasonRBACNoRoles, "user has no roles in this organization", map[string]any{
			"user_id":         ac.UserID,
			"organization_id": ac.OrganizationID,
		}))
	}

	permissions, err := r.permissionsForRoles(ctx, roleIDs, ac.OrganizationID)
	if err != nil {
		r.logger.Error("rbac permission resolution failed", "user_id", ac.UserID, "error", err.Error())
		return Deny(Reason(ReasonAuthorizationError, "permission resolution failed", nil))
	}
	if len(permissions) == 0 {
		return Deny(Reason(ReasonRBACNoPermissions, "user roles grant no permissions", map[string]any{
			"role_ids": roleIDs,
		}))
	}

	granted := make(map[string]bool, len(permissions))
	for _, p := range permissions {
		granted[p] = true
	}
	required := ac.ResourceType + ":" + ac.Action
	candidates := []string{
		required,
		ac.ResourceType + ":*",
		"*:" + ac.Action,
		"*:*",
	}
	for _, candidate := range candidates {
		if granted[candidate] {
			return Allow(Reason(ReasonRBACAllow, fmt.Sprintf("permission %s granted via %s", required, candidate), map[string]any{
				"required": required,
				"matched":  candidate,
			}))
		}
	}
	return Deny(Reason(ReasonRBACDeny, fmt.Sprintf("no role grants %s", required), map[string]any{
		"required":         required,
		"user_permissions": permissions,
	}))
}
