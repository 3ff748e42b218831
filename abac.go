package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/axdbertuol/authz/logger"
)

// ABACEngine evaluates attribute policies against an enriched request
// context and combines the results with deny-override.
type ABACEngine struct {
	policies  PolicyStore
	resources ResourceStore
	logger    logger.Logger
}

func NewABACEngine(policies PolicyStore, resources ResourceStore, log logger.Logger) *ABACEngine {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &ABACEngine{policies: policies, resources: resources, logger: log}
}

// EnrichContext loads the target resource and copies its attributes plus
// owner_id, is_active and organization_id into the context's resource map.
// Enrichment is mandatory before policy evaluation; a missing resource
// leaves the context untouched, any other store failure is an error.
func (a *ABACEngine) EnrichContext(ctx context.Context, ac *AuthorizationContext) (*AuthorizationContext, error) {
	if ac.ResourceID == "" {
		return ac, nil
	}
	res, err := a.resources.GetResource(ctx, ac.ResourceType, ac.ResourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ac, nil
		}
		return nil, fmt.Errorf("load resource %s/%s: %w", ac.ResourceType, ac.ResourceID, err)
	}
	return ac.WithResourceAttributes(res.EnrichmentAttributes()), nil
}

// EvaluatePolicies runs every applicable policy in priority order and
// combines with deny-override: any true deny wins, else any true allow,
// else not_applicable. Each evaluated policy leaves a reason in the trail.
func (a *ABACEngine) EvaluatePolicies(ctx context.Context, ac *AuthorizationContext) *AuthorizationDecision {
	enriched, err := a.EnrichContext(ctx, ac)
	if err != nil {
		a.logger.Error("abac enrichment failed", "resource_id", ac.ResourceID, "error", err.Error())
		return Deny(Reason(ReasonAuthorizationError, "resource enrichment failed", nil))
	}

	policies, err := a.policies.ListApplicablePolicies(ctx, ac.ResourceType, ac.Action, ac.OrganizationID)
	if err != nil {
		a.logger.Error("abac policy lookup failed", "resource_type", ac.ResourceType, "error", err.Error())
		return Deny(Reason(ReasonAuthorizationError, "policy lookup failed", nil))
	}
	if len(policies) == 0 {
		return NotApplicable(Reason(ReasonABACNoPolicies, "no policies apply to this request", map[string]any{
			"resource_type": ac.ResourceType,
			"action":        ac.Action,
		}))
	}

	SortPoliciesByPriority(policies)

	reasons := make([]DecisionReason, 0, len(policies))
	anyDeny := false
	anyAllow := false
	for _, p := range policies {
		verdict := p.Evaluate(enriched)
		if verdict == nil {
			reasons = append(reasons, Reason(ReasonPolicyEvaluation, fmt.Sprintf("policy %s not applicable", p.ID), map[string]any{
				"policy_id": p.ID,
				"priority":  p.Priority,
			}))
			continue
		}
		reasons = append(reasons, Reason(ReasonPolicyEvaluation, fmt.Sprintf("policy %s matched with effect %s", p.ID, p.Effect), map[string]any{
			"policy_id": p.ID,
			"priority":  p.Priority,
			"effect":    string(p.Effect),
		}))
		if *verdict {
			anyAllow = true
		} else {
			anyDeny = true
		}
	}

	switch {
	case anyDeny:
		return Deny(reasons...)
	case anyAllow:
		return Allow(reasons...)
	default:
		reasons = append(reasons, Reason(ReasonABACNotApplicable, "no policy conditions matched", nil))
		return NotApplicable(reasons...)
	}
}

// SortPoliciesByPriority orders policies highest priority first, ties
// broken by id so a given input always evaluates in the same order.
func SortPoliciesByPriority(policies []*Policy) {
	sort.SliceStable(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority > policies[j].Priority
		}
		return policies[i].ID < policies[j].ID
	})
}
