package authz

import "time"

// DecisionResult is the outcome of one evaluation stage or of the whole
// request. not_applicable is a valid intermediate ABAC state, not an error.
type DecisionResult string

const (
	ResultAllow         DecisionResult = "allow"
	ResultDeny          DecisionResult = "deny"
	ResultNotApplicable DecisionResult = "not_applicable"
)

// Reason types carried in the decision trail.
const (
	ReasonRBACAllow          = "rbac_allow"
	ReasonRBACDeny           = "rbac_deny"
	ReasonRBACNoRoles        = "rbac_no_roles"
	ReasonRBACNoPermissions  = "rbac_no_permissions"
	ReasonABACNoPolicies     = "abac_no_policies"
	ReasonABACNotApplicable  = "abac_not_applicable"
	ReasonPolicyEvaluation   = "policy_evaluation"
	ReasonDecisionCombined   = "decision_combination"
	ReasonAuthorizationError = "authorization_error"
	ReasonDefaultDeny        = "default_deny"
)

// DecisionReason is one structured entry in a decision's reason trail.
type DecisionReason struct {
	Type    string         `json:"type" yaml:"type"`
	Message string         `json:"message" yaml:"message"`
	Detail  map[string]any `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func Reason(rtype, message string, detail map[string]any) DecisionReason {
	return DecisionReason{Type: rtype, Message: message, Detail: detail}
}

// AuthorizationDecision is the result of an evaluation with its ordered
// reason trail, oldest reason first.
type AuthorizationDecision struct {
	Result         DecisionResult   `json:"result" yaml:"result"`
	Reasons        []DecisionReason `json:"reasons" yaml:"reasons"`
	Timestamp      time.Time        `json:"timestamp" yaml:"timestamp"`
	EvaluationTime time.Duration    `json:"evaluation_time" yaml:"evaluation_time"`
	Cached         bool             `json:"cached,omitempty" yaml:"cached,omitempty"`
}

func Allow(reasons ...DecisionReason) *AuthorizationDecision {
	return &AuthorizationDecision{Result: ResultAllow, Reasons: reasons, Timestamp: time.Now()}
}

func Deny(reasons ...DecisionReason) *AuthorizationDecision {
	return &AuthorizationDecision{Result: ResultDeny, Reasons: reasons, Timestamp: time.Now()}
}

func NotApplicable(reasons ...DecisionReason) *AuthorizationDecision {
	return &AuthorizationDecision{Result: ResultNotApplicable, Reasons: reasons, Timestamp: time.Now()}
}

func (d *AuthorizationDecision) IsAllowed() bool       { return d != nil && d.Result == ResultAllow }
func (d *AuthorizationDecision) IsDenied() bool        { return d != nil && d.Result == ResultDeny }
func (d *AuthorizationDecision) IsNotApplicable() bool {
	return d != nil && d.Result == ResultNotApplicable
}

// HasReason reports whether the trail carries a reason of the given type.
func (d *AuthorizationDecision) HasReason(rtype string) bool {
	if d == nil {
		return false
	}
	for _, r := range d.Reasons {
		if r.Type == rtype {
			return true
		}
	}
	return false
}

func (d *AuthorizationDecision) addReasons(reasons ...DecisionReason) *AuthorizationDecision {
	d.Reasons = append(d.Reasons, reasons...)
	return d
}

// CombineDecisions merges the RBAC and ABAC outputs by fixed precedence:
// an ABAC deny always wins, an ABAC allow wins over any RBAC result
// (resource-specific grants override role defaults), and not_applicable
// falls back to RBAC. A nil abac means the request carried no resource id
// and RBAC decides alone. The combined reason trail keeps both evaluations'
// reasons, oldest first.
func CombineDecisions(rbac, abac *AuthorizationDecision) *AuthorizationDecision {
	trail := make([]DecisionReason, 0, len(rbac.Reasons)+8)
	trail = append(trail, rbac.Reasons...)

	if abac == nil {
		final := &AuthorizationDecision{Result: rbac.Result, Reasons: trail, Timestamp: time.Now()}
		return final.addReasons(Reason(ReasonDecisionCombined, "RBAC only (no resource id)", nil))
	}

	trail = append(trail, abac.Reasons...)
	final := &AuthorizationDecision{Reasons: trail, Timestamp: time.Now()}
	switch {
	case abac.IsDenied():
		final.Result = ResultDeny
		final.addReasons(Reason(ReasonDecisionCombined, "ABAC deny overrides", nil))
	case abac.IsAllowed():
		final.Result = ResultAllow
		final.addReasons(Reason(ReasonDecisionCombined, "ABAC allow", nil))
	case abac.IsNotApplicable():
		final.Result = rbac.Result
		final.addReasons(Reason(ReasonDecisionCombined, "RBAC fallback", nil))
	default:
		final.Result = ResultDeny
		final.addReasons(Reason(ReasonDefaultDeny, "no evaluator produced a decision", nil))
	}
	if final.Result != ResultAllow && final.Result != ResultDeny {
		// RBAC never returns not_applicable, but the external contract has
		// no "unknown" state, so close it off anyway.
		final.Result = ResultDeny
		final.addReasons(Reason(ReasonDefaultDeny, "unresolved decision defaults to deny", nil))
	}
	return final
}
