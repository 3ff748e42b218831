package authz

import (
	"fmt"
	"strings"
	"time"
)

// Effect is the outcome a policy produces when all its conditions hold.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Policy is one ABAC rule: if the request matches resource_type, action,
// and scope, and every condition evaluates true, the policy yields its
// effect. Higher priority wins the evaluation order; deny overrides allow
// at combination time regardless of priority.
type Policy struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	Effect       Effect      `json:"effect" yaml:"effect"`
	ResourceType string      `json:"resource_type" yaml:"resource_type"`
	Action       string      `json:"action" yaml:"action"`
	Conditions   []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Scope        Scope       `json:"organization_id" yaml:"organization_id,omitempty"`
	Priority     int         `json:"priority" yaml:"priority"`
	IsActive     bool        `json:"is_active" yaml:"is_active"`
	Version      int         `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt    time.Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

func (p *Policy) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("policy id is required")
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return fmt.Errorf("policy %s: effect must be allow or deny, got %q", p.ID, p.Effect)
	}
	if strings.TrimSpace(p.ResourceType) == "" {
		return fmt.Errorf("policy %s: resource_type is required", p.ID)
	}
	if strings.TrimSpace(p.Action) == "" {
		return fmt.Errorf("policy %s: action is required", p.ID)
	}
	for i, c := range p.Conditions {
		if err := ValidateCondition(c); err != nil {
			return fmt.Errorf("policy %s condition %d: %w", p.ID, i, err)
		}
	}
	return nil
}

// MatchesRequest reports whether the policy applies to the request shape.
// "*" on the policy's resource type or action matches anything.
func (p *Policy) MatchesRequest(ac *AuthorizationContext) bool {
	if p.ResourceType != "*" && p.ResourceType != ac.ResourceType {
		return false
	}
	if p.Action != "*" && p.Action != ac.Action {
		return false
	}
	return p.Scope.Contains(ac.OrganizationID)
}

// Evaluate returns nil when the policy is not applicable (inactive, shape
// or scope mismatch, or any condition false) and otherwise a pointer to
// whether the effect is allow. Conditions are AND-combined in order.
func (p *Policy) Evaluate(ac *AuthorizationContext) *bool {
	if !p.IsActive {
		return nil
	}
	if !p.MatchesRequest(ac) {
		return nil
	}
	if !EvaluateAll(p.Conditions, ac.EvalMap()) {
		return nil
	}
	allowed := p.Effect == EffectAllow
	return &allowed
}
