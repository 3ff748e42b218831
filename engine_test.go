package authz_test

import (
	"context"
	"testing"
	"time"

	authz "github.com/axdbertuol/authz"
	"github.com/axdbertuol/authz/stores"
)

type engineFixture struct {
	engine      *authz.Engine
	permissions *stores.MemoryPermissionStore
	roles       *stores.MemoryRoleStore
	memberships *stores.MemoryRoleMembershipStore
	policies    *stores.MemoryPolicyStore
	resources   *stores.MemoryResourceStore
	areas       *stores.MemoryAreaStore
	functions   *stores.MemoryFunctionStore
	assignments *stores.MemoryAssignmentStore
	audit       *stores.MemoryAuditStore
}

func newEngineFixture(t *testing.T, opts ...authz.EngineOption) *engineFixture {
	t.Helper()
	f := &engineFixture{
		permissions: stores.NewMemoryPermissionStore(),
		roles:       stores.NewMemoryRoleStore(),
		memberships: stores.NewMemoryRoleMembershipStore(),
		policies:    stores.NewMemoryPolicyStore(),
		resources:   stores.NewMemoryResourceStore(),
		areas:       stores.NewMemoryAreaStore(),
		functions:   stores.NewMemoryFunctionStore(),
		assignments: stores.NewMemoryAssignmentStore(),
		audit:       stores.NewMemoryAuditStore(),
	}
	engine, err := authz.NewEngine(authz.Stores{
		Permissions: f.permissions,
		Roles:       f.roles,
		Memberships: f.memberships,
		Policies:    f.policies,
		Resources:   f.resources,
		Areas:       f.areas,
		Functions:   f.functions,
		Assignments: f.assignments,
		Audit:       f.audit,
	}, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

// seedAnalista gives user-1 the "analista" role granting document:read in
// org-1.
func (f *engineFixture) seedAnalista(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	role := authz.NewRole("analista", "analista", authz.OrgScope("org-1"), "admin")
	if err := f.engine.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	perm, err := authz.NewPermission("perm-read", "document", "read", authz.ContextDocument)
	if err != nil {
		t.Fatalf("new permission: %v", err)
	}
	if err := f.engine.CreatePermission(ctx, perm); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	if err := f.engine.GrantPermissionToRole(ctx, "analista", "document:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := f.engine.AssignRole(ctx, "user-1", "org-1", "analista"); err != nil {
		t.Fatalf("assign role: %v", err)
	}
}

func TestEngineRBACOnlyDecision(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnalista(t)
	ctx := context.Background()

	dec := f.engine.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	if !dec.IsAllowed() {
		t.Fatalf("expected allow, got %s %+v", dec.Result, dec.Reasons)
	}
	if dec.Reasons[0].Type != authz.ReasonRBACAllow {
		t.Fatalf("first reason should be rbac_allow, got %s", dec.Reasons[0].Type)
	}
	last := dec.Reasons[len(dec.Reasons)-1]
	if last.Type != authz.ReasonDecisionCombined || last.Message != "RBAC only (no resource id)" {
		t.Fatalf("expected RBAC-only combination reason, got %+v", last)
	}
	if dec.EvaluationTime <= 0 {
		t.Fatalf("evaluation time must be recorded")
	}

	dec = f.engine.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "delete"))
	if !dec.IsDenied() {
		t.Fatalf("ungranted action must deny")
	}
}

func TestEngineABACDenyOverridesRBACAllow(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnalista(t)
	ctx := context.Background()

	p1 := &authz.Policy{
		ID: "p1", Effect: authz.EffectDeny, ResourceType: "document", Action: "*",
		Conditions: []authz.Condition{
			{Attribute: "resource.confidentiality_level", Operator: authz.OpIn, Value: authz.ListValue("restricted")},
			{Attribute: "user.clearance_level", Operator: authz.OpNotIn, Value: authz.ListValue("restricted")},
		},
		Priority: 150, IsActive: true,
	}
	if err := f.engine.CreatePolicy(ctx, p1); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if err := f.resources.UpsertResource(ctx, &authz.Resource{
		ID: "doc-1", Type: "document", OrganizationID: "org-1", OwnerID: "user-2", IsActive: true,
		Attributes: map[string]any{"confidentiality_level": "restricted"},
	}); err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").
		WithResourceID("doc-1").
		WithUserAttribute("clearance_level", "internal")
	dec := f.engine.Authorize(ctx, ac)
	if !dec.IsDenied() {
		t.Fatalf("ABAC deny must override RBAC allow, got %s %+v", dec.Result, dec.Reasons)
	}
	last := dec.Reasons[len(dec.Reasons)-1]
	if last.Message != "ABAC deny overrides" {
		t.Fatalf("expected 'ABAC deny overrides' combination reason, got %+v", last)
	}
	// RBAC reasons precede ABAC reasons in the trail
	if dec.Reasons[0].Type != authz.ReasonRBACAllow {
		t.Fatalf("RBAC reasons should come first: %+v", dec.Reasons)
	}
}

func TestEngineABACAllowOverridesRBACDeny(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnalista(t)
	ctx := context.Background()

	owner := &authz.Policy{
		ID: "allow-owner", Effect: authz.EffectAllow, ResourceType: "document", Action: "delete",
		Conditions: []authz.Condition{
			{Attribute: "resource.owner_id", Operator: authz.OpEq, Value: authz.ScalarValue("user-1")},
		},
		Priority: 50, IsActive: true,
	}
	if err := f.engine.CreatePolicy(ctx, owner); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if err := f.resources.UpsertResource(ctx, &authz.Resource{
		ID: "doc-mine", Type: "document", OrganizationID: "org-1", OwnerID: "user-1", IsActive: true,
	}); err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	// RBAC denies delete, but the ownership policy allows it
	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "delete").WithResourceID("doc-mine")
	dec := f.engine.Authorize(ctx, ac)
	if !dec.IsAllowed() {
		t.Fatalf("ABAC allow must override RBAC deny, got %s %+v", dec.Result, dec.Reasons)
	}
	last := dec.Reasons[len(dec.Reasons)-1]
	if last.Message != "ABAC allow" {
		t.Fatalf("expected 'ABAC allow' combination reason, got %+v", last)
	}
}

func TestEngineRBACFallbackWhenABACNotApplicable(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnalista(t)
	ctx := context.Background()

	if err := f.resources.UpsertResource(ctx, &authz.Resource{
		ID: "doc-1", Type: "document", OrganizationID: "org-1", IsActive: true,
	}); err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").WithResourceID("doc-1")
	dec := f.engine.Authorize(ctx, ac)
	if !dec.IsAllowed() {
		t.Fatalf("no applicable policies should fall back to RBAC allow, got %s", dec.Result)
	}
	last := dec.Reasons[len(dec.Reasons)-1]
	if last.Message != "RBAC fallback" {
		t.Fatalf("expected 'RBAC fallback' combination reason, got %+v", last)
	}
}

func TestEngineNilContextDenies(t *testing.T) {
	f := newEngineFixture(t)
	dec := f.engine.Authorize(context.Background(), nil)
	if !dec.IsDenied() {
		t.Fatalf("nil context must deny")
	}
	if dec.Reasons[0].Type != authz.ReasonAuthorizationError {
		t.Fatalf("expected authorization_error, got %s", dec.Reasons[0].Type)
	}
}

// panicPolicyStore simulates a store bug during ABAC evaluation.
type panicPolicyStore struct {
	authz.PolicyStore
}

func (panicPolicyStore) ListApplicablePolicies(ctx context.Context, resourceType, action, orgID string) ([]*authz.Policy, error) {
	panic("store corrupted")
}

func TestEngineFailClosedOnPanic(t *testing.T) {
	f := &engineFixture{
		permissions: stores.NewMemoryPermissionStore(),
		roles:       stores.NewMemoryRoleStore(),
		memberships: stores.NewMemoryRoleMembershipStore(),
		policies:    stores.NewMemoryPolicyStore(),
		resources:   stores.NewMemoryResourceStore(),
		areas:       stores.NewMemoryAreaStore(),
		functions:   stores.NewMemoryFunctionStore(),
		assignments: stores.NewMemoryAssignmentStore(),
	}
	engine, err := authz.NewEngine(authz.Stores{
		Permissions: f.permissions,
		Roles:       f.roles,
		Memberships: f.memberships,
		Policies:    panicPolicyStore{f.policies},
		Resources:   f.resources,
		Areas:       f.areas,
		Functions:   f.functions,
		Assignments: f.assignments,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer engine.Close()

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").WithResourceID("doc-1")
	dec := engine.Authorize(context.Background(), ac)
	if !dec.IsDenied() {
		t.Fatalf("panicking evaluator must fail closed, got %s", dec.Result)
	}
	found := false
	for _, r := range dec.Reasons {
		if r.Type == authz.ReasonAuthorizationError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an authorization_error reason: %+v", dec.Reasons)
	}
}

func TestEngineCheckMultiplePermissions(t *testing.T) {
	f := newEngineFixture(t, authz.WithBatchWorkers(2))
	f.seedAnalista(t)

	got := f.engine.CheckMultiplePermissions(context.Background(), "user-1", "document",
		[]string{"read", "update", "delete"}, "org-1", "")
	if !got["read"] || got["update"] || got["delete"] {
		t.Fatalf("expected only read allowed, got %v", got)
	}
}

func TestEngineGetUserPermissions(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnalista(t)
	perms, err := f.engine.GetUserPermissions(context.Background(), "user-1", "org-1")
	if err != nil {
		t.Fatalf("get user permissions: %v", err)
	}
	if len(perms) != 1 || perms[0] != "document:read" {
		t.Fatalf("expected [document:read], got %v", perms)
	}
}

func TestEngineDecisionCacheInvalidation(t *testing.T) {
	f := newEngineFixture(t, authz.WithDecisionCache(time.Minute, 1024))
	f.seedAnalista(t)
	ctx := context.Background()

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read")
	if !f.engine.Authorize(ctx, ac).IsAllowed() {
		t.Fatalf("expected allow before revocation")
	}

	// RevokeRole clears the cache, so the stale allow must not survive
	if err := f.engine.RevokeRole(ctx, "user-1", "org-1", "analista"); err != nil {
		t.Fatalf("revoke role: %v", err)
	}
	if f.engine.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read")).IsAllowed() {
		t.Fatalf("revoked role must not keep granting through the cache")
	}
}

func TestEngineGetAccessibleResources(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnalista(t)
	ctx := context.Background()

	for _, r := range []*authz.Resource{
		{ID: "doc-a", Type: "document", OrganizationID: "org-1", IsActive: true},
		{ID: "doc-b", Type: "document", OrganizationID: "org-1", IsActive: true},
	} {
		if err := f.resources.UpsertResource(ctx, r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	// archived documents are denied by policy
	deny := &authz.Policy{
		ID: "deny-archived", Effect: authz.EffectDeny, ResourceType: "document", Action: "read",
		Conditions: []authz.Condition{
			{Attribute: "resource.is_active", Operator: authz.OpEq, Value: authz.ScalarValue(false)},
		},
		Priority: 100, IsActive: true,
	}
	if err := f.engine.CreatePolicy(ctx, deny); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	archived := &authz.Resource{ID: "doc-c", Type: "document", OrganizationID: "org-1", IsActive: false}
	if err := f.resources.UpsertResource(ctx, archived); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read")
	ids, err := f.engine.GetAccessibleResources(ctx, ac, "document:read", "document")
	if err != nil {
		t.Fatalf("get accessible resources: %v", err)
	}
	if len(ids) != 2 || ids[0] != "doc-a" || ids[1] != "doc-b" {
		t.Fatalf("expected sorted [doc-a doc-b], got %v", ids)
	}

	if _, err := f.engine.GetAccessibleResources(ctx, ac, "badname", "document"); err == nil {
		t.Fatalf("permission name without action must be rejected")
	}
}

func TestEngineAuditTrail(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnalista(t)
	ctx := context.Background()

	f.engine.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	f.engine.Authorize(ctx, authz.NewAuthorizationContext("user-1", "org-1", "document", "delete"))

	// Close drains the audit channel
	f.engine.Close()

	entries, err := f.engine.GetDecisionLog(ctx, authz.AuditFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("get decision log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.TraceID == "" {
			t.Fatalf("audit entry missing trace id: %+v", e)
		}
		if len(e.Reasons) == 0 {
			t.Fatalf("audit entry missing reasons: %+v", e)
		}
	}
	if f.engine.AuditDropped() != 0 {
		t.Fatalf("nothing should be dropped with an idle buffer")
	}
}
