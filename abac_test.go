package authz_test

import (
	"context"
	"testing"

	authz "github.com/axdbertuol/authz"
	"github.com/axdbertuol/authz/logger"
	"github.com/axdbertuol/authz/stores"
)

func newABACFixture(t *testing.T) (*authz.ABACEngine, *stores.MemoryPolicyStore, *stores.MemoryResourceStore) {
	t.Helper()
	policies := stores.NewMemoryPolicyStore()
	resources := stores.NewMemoryResourceStore()
	return authz.NewABACEngine(policies, resources, logger.NewNullLogger()), policies, resources
}

func restrictedDocPolicy() *authz.Policy {
	return &authz.Policy{
		ID:           "p1",
		Name:         "deny restricted documents without clearance",
		Effect:       authz.EffectDeny,
		ResourceType: "document",
		Action:       "*",
		Conditions: []authz.Condition{
			{Attribute: "resource.confidentiality_level", Operator: authz.OpIn, Value: authz.ListValue("restricted")},
			{Attribute: "user.clearance_level", Operator: authz.OpNotIn, Value: authz.ListValue("restricted")},
		},
		Priority: 150,
		IsActive: true,
	}
}

func TestABACNoPolicies(t *testing.T) {
	engine, _, _ := newABACFixture(t)
	dec := engine.EvaluatePolicies(context.Background(), authz.NewAuthorizationContext("user-1", "org-1", "document", "read"))
	if !dec.IsNotApplicable() {
		t.Fatalf("expected not_applicable, got %s", dec.Result)
	}
	if dec.Reasons[0].Type != authz.ReasonABACNoPolicies {
		t.Fatalf("expected abac_no_policies, got %s", dec.Reasons[0].Type)
	}
}

func TestABACEnrichmentAndDeny(t *testing.T) {
	engine, policies, resources := newABACFixture(t)
	ctx := context.Background()

	if err := policies.CreatePolicy(ctx, restrictedDocPolicy()); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if err := resources.UpsertResource(ctx, &authz.Resource{
		ID: "doc-1", Type: "document", OrganizationID: "org-1", OwnerID: "user-2", IsActive: true,
		Attributes: map[string]any{"confidentiality_level": "restricted"},
	}); err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").
		WithResourceID("doc-1").
		WithUserAttribute("clearance_level", "internal")
	dec := engine.EvaluatePolicies(ctx, ac)
	if !dec.IsDenied() {
		t.Fatalf("restricted document without clearance must be denied, got %s %+v", dec.Result, dec.Reasons)
	}

	// with clearance, the deny policy's conditions no longer hold
	cleared := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").
		WithResourceID("doc-1").
		WithUserAttribute("clearance_level", "restricted")
	dec = engine.EvaluatePolicies(ctx, cleared)
	if !dec.IsNotApplicable() {
		t.Fatalf("cleared user should see not_applicable, got %s", dec.Result)
	}
}

func TestABACMissingResourceSkipsEnrichment(t *testing.T) {
	engine, policies, _ := newABACFixture(t)
	ctx := context.Background()
	if err := policies.CreatePolicy(ctx, restrictedDocPolicy()); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	// resource doc-404 is unknown: conditions on resource attributes fail
	// closed and the policy never matches
	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").WithResourceID("doc-404")
	dec := engine.EvaluatePolicies(ctx, ac)
	if !dec.IsNotApplicable() {
		t.Fatalf("unknown resource should yield not_applicable, got %s", dec.Result)
	}
}

func TestABACDenyOverridesAllow(t *testing.T) {
	engine, policies, resources := newABACFixture(t)
	ctx := context.Background()

	allow := &authz.Policy{
		ID: "allow-owner", Effect: authz.EffectAllow, ResourceType: "document", Action: "read",
		Conditions: []authz.Condition{
			{Attribute: "resource.owner_id", Operator: authz.OpEq, Value: authz.ScalarValue("user-1")},
		},
		Priority: 10, IsActive: true,
	}
	deny := &authz.Policy{
		ID: "deny-archived", Effect: authz.EffectDeny, ResourceType: "document", Action: "read",
		Conditions: []authz.Condition{
			{Attribute: "resource.is_active", Operator: authz.OpEq, Value: authz.ScalarValue(false)},
		},
		Priority: 5, IsActive: true,
	}
	for _, p := range []*authz.Policy{allow, deny} {
		if err := policies.CreatePolicy(ctx, p); err != nil {
			t.Fatalf("create policy: %v", err)
		}
	}
	if err := resources.UpsertResource(ctx, &authz.Resource{
		ID: "doc-1", Type: "document", OrganizationID: "org-1", OwnerID: "user-1", IsActive: false,
	}); err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").WithResourceID("doc-1")
	dec := engine.EvaluatePolicies(ctx, ac)
	if !dec.IsDenied() {
		t.Fatalf("deny must override allow regardless of priority, got %s", dec.Result)
	}
	// both evaluations leave a policy_evaluation reason in the trail
	evals := 0
	for _, r := range dec.Reasons {
		if r.Type == authz.ReasonPolicyEvaluation {
			evals++
		}
	}
	if evals != 2 {
		t.Fatalf("expected 2 policy_evaluation reasons, got %d: %+v", evals, dec.Reasons)
	}
}

func TestABACOrganizationScoping(t *testing.T) {
	engine, policies, resources := newABACFixture(t)
	ctx := context.Background()

	scoped := restrictedDocPolicy()
	scoped.Scope = authz.OrgScope("org-2")
	if err := policies.CreatePolicy(ctx, scoped); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if err := resources.UpsertResource(ctx, &authz.Resource{
		ID: "doc-1", Type: "document", OrganizationID: "org-1", IsActive: true,
		Attributes: map[string]any{"confidentiality_level": "restricted"},
	}); err != nil {
		t.Fatalf("upsert resource: %v", err)
	}

	ac := authz.NewAuthorizationContext("user-1", "org-1", "document", "read").
		WithResourceID("doc-1").
		WithUserAttribute("clearance_level", "internal")
	dec := engine.EvaluatePolicies(ctx, ac)
	if dec.IsDenied() {
		t.Fatalf("another organization's policy must not apply")
	}
}

func TestSortPoliciesByPriority(t *testing.T) {
	ps := []*authz.Policy{
		{ID: "b", Priority: 10},
		{ID: "a", Priority: 10},
		{ID: "c", Priority: 200},
	}
	authz.SortPoliciesByPriority(ps)
	if ps[0].ID != "c" || ps[1].ID != "a" || ps[2].ID != "b" {
		t.Fatalf("expected [c a b], got [%s %s %s]", ps[0].ID, ps[1].ID, ps[2].ID)
	}
}
