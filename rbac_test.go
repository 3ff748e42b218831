package authz_test

import (
	"context"
	"testing"

	authz "github.com/axdbertuol/authz"
	"github.com/axdbertuol/authz/logger"
	"github.com/axdbertuol/authz/stores"
)

func newRBACFixture(t *testing.T) (*authz.RBACResolver, *stores.MemoryRoleStore, *stores.MemoryRoleMembershipStore, *stores.MemoryPermissionStore) {
	t.Helper()
	roleStore := stores.NewMemoryRoleStore()
	memberships := stores.NewMemoryRoleMembershipStore()
	perms := stores.NewMemoryPermissionStore()
	resolver := authz.NewRBACResolver(roleStore, memberships, perms, logger.NewNullLogger())
	return resolver, roleStore, memberships, perms
}

func mustCreatePermission(t *testing.T, store *stores.MemoryPermissionStore, id, resourceType, action string) {
	t.Helper()
	p, err := authz.NewPermission(id, resourceType, action, authz.ContextDocument)
	if err != nil {
		t.Fatalf("new permission %s:%s: %v", resourceType, action, err)
	}
	if err := store.CreatePermission(context.Background(), p); err != nil {
		t.Fatalf("create permission: %v", err)
	}
}

func TestRBACAuthorizeDirectGrant(t *testing.T) {
	resolver, roleStore, memberships, perms := newRBACFixture(t)
	ctx := context.Background()

	role := authz.NewRole("analista", "analista", authz.OrgScope("org-1"), "admin")
	if err := roleStore.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	mustCreatePermission(t, perms, "perm-1", "document", "read")
	if err := perms.GrantToRole(ctx, "analista", "document:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := memberships.AssignRole(ctx, "user-1", "org-1", "analista"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	dec := resolver.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	if !dec.IsAllowed() {
		t.Fatalf("expected allow, got %s: %+v", dec.Result, dec.Reasons)
	}
	if dec.Reasons[0].Type != authz.ReasonRBACAllow {
		t.Fatalf("expected rbac_allow reason, got %s", dec.Reasons[0].Type)
	}

	dec = resolver.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "delete"))
	if !dec.IsDenied() {
		t.Fatalf("expected deny for ungranted action")
	}
	if dec.Reasons[0].Type != authz.ReasonRBACDeny {
		t.Fatalf("expected rbac_deny reason, got %s", dec.Reasons[0].Type)
	}
}

func TestRBACNoRoles(t *testing.T) {
	resolver, _, _, _ := newRBACFixture(t)
	dec := resolver.Authorize(context.Background(), authz.NewAuthorizationContext("stranger", "org-1", "document", "read"))
	if !dec.IsDenied() || dec.Reasons[0].Type != authz.ReasonRBACNoRoles {
		t.Fatalf("expected rbac_no_roles deny, got %s %+v", dec.Result, dec.Reasons)
	}
}

func TestRBACNoPermissions(t *testing.T) {
	resolver, roleStore, memberships, _ := newRBACFixture(t)
	ctx := context.Background()
	role := authz.NewRole("empty", "empty", authz.OrgScope("org-1"), "admin")
	if err := roleStore.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := memberships.AssignRole(ctx, "user-1", "org-1", "empty"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	dec := resolver.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	if !dec.IsDenied() || dec.Reasons[0].Type != authz.ReasonRBACNoPermissions {
		t.Fatalf("expected rbac_no_permissions deny, got %s %+v", dec.Result, dec.Reasons)
	}
}

func TestRBACWildcardGrants(t *testing.T) {
	resolver, roleStore, memberships, perms := newRBACFixture(t)
	ctx := context.Background()

	cases := []struct {
		roleID, resourceType, action string
	}{
		{"docs-all", "document", "*"},
		{"read-all", "*", "read"},
		{"superuser", "*", "*"},
	}
	for i, tc := range cases {
		role := authz.NewRole(tc.roleID, tc.roleID, authz.OrgScope("org-1"), "admin")
		if err := roleStore.CreateRole(ctx, role); err != nil {
			t.Fatalf("create role: %v", err)
		}
		// wildcard grants bypass the name pattern, insert directly
		p := &authz.Permission{ID: tc.roleID + "-perm", Name: tc.resourceType + ":" + tc.action,
			ResourceType: tc.resourceType, Action: tc.action, IsActive: true}
		if err := perms.CreatePermission(ctx, p); err != nil {
			t.Fatalf("create permission: %v", err)
		}
		if err := perms.GrantToRole(ctx, tc.roleID, p.Name); err != nil {
			t.Fatalf("grant: %v", err)
		}
		user := "user-" + tc.roleID
		if err := memberships.AssignRole(ctx, user, "org-1", tc.roleID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		dec := resolver.Authorize(ctx, authz.NewAuthorizationContext(user, "org-1", "document", "read"))
		if !dec.IsAllowed() {
			t.Fatalf("case %d (%s): expected allow, got %s %+v", i, tc.roleID, dec.Result, dec.Reasons)
		}
	}
}

func TestRBACRoleInheritance(t *testing.T) {
	resolver, roleStore, memberships, perms := newRBACFixture(t)
	ctx := context.Background()

	parent := authz.NewRole("viewer", "viewer", authz.GlobalScope(), "root")
	child := authz.NewRole("editor", "editor", authz.OrgScope("org-1"), "admin")
	child.ParentRoleID = "viewer"
	for _, r := range []*authz.Role{parent, child} {
		if err := roleStore.CreateRole(ctx, r); err != nil {
			t.Fatalf("create role: %v", err)
		}
	}
	mustCreatePermission(t, perms, "perm-read", "document", "read")
	mustCreatePermission(t, perms, "perm-update", "document", "update")
	if err := perms.GrantToRole(ctx, "viewer", "document:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := perms.GrantToRole(ctx, "editor", "document:update"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := memberships.AssignRole(ctx, "user-1", "org-1", "editor"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	got, err := resolver.UserPermissions(ctx, "user-1", "org-1")
	if err != nil {
		t.Fatalf("user permissions: %v", err)
	}
	if len(got) != 2 || got[0] != "document:read" || got[1] != "document:update" {
		t.Fatalf("expected inherited set [document:read document:update], got %v", got)
	}

	// permission inherited from the global parent grants access
	dec := resolver.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	if !dec.IsAllowed() {
		t.Fatalf("inherited permission should allow: %+v", dec.Reasons)
	}
}

func TestRBACInactiveRolesAndPermissions(t *testing.T) {
	resolver, roleStore, memberships, perms := newRBACFixture(t)
	ctx := context.Background()

	role := authz.NewRole("r1", "r1", authz.OrgScope("org-1"), "admin")
	role.IsActive = false
	if err := roleStore.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	mustCreatePermission(t, perms, "perm-read", "document", "read")
	if err := perms.GrantToRole(ctx, "r1", "document:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := memberships.AssignRole(ctx, "user-1", "org-1", "r1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	dec := resolver.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	if !dec.IsDenied() {
		t.Fatalf("inactive role must grant nothing")
	}
}

type countingMembershipStore struct {
	authz.RoleMembershipStore
	listCalls int
}

func (s *countingMembershipStore) ListRoleIDs(ctx context.Context, userID, orgID string) ([]string, error) {
	s.listCalls++
	return s.RoleMembershipStore.ListRoleIDs(ctx, userID, orgID)
}

func TestRBACAuthorizeFetchesMembershipsOnce(t *testing.T) {
	ctx := context.Background()
	roleStore := stores.NewMemoryRoleStore()
	memberships := &countingMembershipStore{RoleMembershipStore: stores.NewMemoryRoleMembershipStore()}
	perms := stores.NewMemoryPermissionStore()
	resolver := authz.NewRBACResolver(roleStore, memberships, perms, logger.NewNullLogger())

	role := authz.NewRole("analista", "analista", authz.OrgScope("org-1"), "admin")
	if err := roleStore.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	mustCreatePermission(t, perms, "perm-1", "document", "read")
	if err := perms.GrantToRole(ctx, "analista", "document:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := memberships.AssignRole(ctx, "user-1", "org-1", "analista"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	dec := resolver.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	if !dec.IsAllowed() {
		t.Fatalf("expected allow, got %s: %+v", dec.Result, dec.Reasons)
	}
	if memberships.listCalls != 1 {
		t.Fatalf("Authorize should fetch memberships once, got %d lookups", memberships.listCalls)
	}
}

func TestEffectivePermissionsCycleTerminates(t *testing.T) {
	a := authz.NewRole("a", "a", authz.OrgScope("org-1"), "admin")
	b := authz.NewRole("b", "b", authz.OrgScope("org-1"), "admin")
	a.ParentRoleID = "b"
	b.ParentRoleID = "a"
	permA, _ := authz.NewPermission("pa", "document", "read", authz.ContextDocument)
	permB, _ := authz.NewPermission("pb", "document", "update", authz.ContextDocument)

	var resolver authz.RoleInheritanceResolver
	got := resolver.EffectivePermissions([]string{"a"}, []*authz.Role{a, b}, map[string][]*authz.Permission{
		"a": {permA},
		"b": {permB},
	})
	if len(got) != 2 {
		t.Fatalf("cyclic hierarchy should still yield both permission sets once: %v", got)
	}
}
