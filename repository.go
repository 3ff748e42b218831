package authz

import (
	"context"
	"time"
)

// Store contracts the engine consumes. All lookups are read-only from the
// core's perspective; the mutating methods exist for the administrative
// surface and config loading. Implementations own their consistency
// guarantees.

type PermissionStore interface {
	CreatePermission(ctx context.Context, p *Permission) error
	GetPermission(ctx context.Context, name string) (*Permission, error)
	GrantToRole(ctx context.Context, roleID, permissionName string) error
	RevokeFromRole(ctx context.Context, roleID, permissionName string) error
	ListRolePermissions(ctx context.Context, roleID string) ([]*Permission, error)
}

type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error
	GetRole(ctx context.Context, id string) (*Role, error)
	// ListRoles returns the organization's roles plus all global roles;
	// an empty orgID returns global roles only.
	ListRoles(ctx context.Context, orgID string) ([]*Role, error)
}

// RoleMembershipStore tracks which roles a user holds per organization.
type RoleMembershipStore interface {
	AssignRole(ctx context.Context, userID, orgID, roleID string) error
	RevokeRole(ctx context.Context, userID, orgID, roleID string) error
	ListRoleIDs(ctx context.Context, userID, orgID string) ([]string, error)
}

type PolicyStore interface {
	CreatePolicy(ctx context.Context, p *Policy) error
	UpdatePolicy(ctx context.Context, p *Policy) error
	DeletePolicy(ctx context.Context, id string) error
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	ListPolicies(ctx context.Context, orgID string) ([]*Policy, error)
	// ListApplicablePolicies returns active policies whose resource type and
	// action match the request (either may be "*" on the policy) and whose
	// scope is global or the given organization.
	ListApplicablePolicies(ctx context.Context, resourceType, action, orgID string) ([]*Policy, error)
}

type ResourceStore interface {
	UpsertResource(ctx context.Context, r *Resource) error
	GetResource(ctx context.Context, resourceType, id string) (*Resource, error)
	ListResources(ctx context.Context, orgID, resourceType string) ([]*Resource, error)
}

type AreaStore interface {
	CreateArea(ctx context.Context, a *Area) error
	UpdateArea(ctx context.Context, a *Area) error
	GetArea(ctx context.Context, id string) (*Area, error)
	ListAreas(ctx context.Context, orgID string) ([]*Area, error)
}

type FunctionStore interface {
	CreateFunction(ctx context.Context, f *ManagementFunction) error
	UpdateFunction(ctx context.Context, f *ManagementFunction) error
	GetFunction(ctx context.Context, id string) (*ManagementFunction, error)
	ListFunctions(ctx context.Context, orgID string) ([]*ManagementFunction, error)
}

type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a *UserFunctionArea) error
	UpdateAssignment(ctx context.Context, a *UserFunctionArea) error
	GetAssignment(ctx context.Context, id string) (*UserFunctionArea, error)
	// GetUserAssignment returns the user's current assignment in the
	// organization, ErrNotFound when there is none.
	GetUserAssignment(ctx context.Context, userID, orgID string) (*UserFunctionArea, error)
	ListAreaAssignments(ctx context.Context, areaID string) ([]*UserFunctionArea, error)
}

// AuditEntry records one decision for the audit trail.
type AuditEntry struct {
	ID             string           `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	TraceID        string           `json:"trace_id,omitempty"`
	UserID         string           `json:"user_id"`
	OrganizationID string           `json:"organization_id,omitempty"`
	ResourceType   string           `json:"resource_type"`
	ResourceID     string           `json:"resource_id,omitempty"`
	Action         string           `json:"action"`
	Result         DecisionResult   `json:"result"`
	Reasons        []DecisionReason `json:"reasons,omitempty"`
	EvaluationTime time.Duration    `json:"evaluation_time"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// AuditFilter narrows GetDecisionLog queries; zero fields match everything.
type AuditFilter struct {
	UserID         string
	OrganizationID string
	ResourceID     string
	Action         string
	StartTime      time.Time
	EndTime        time.Time
	Limit          int
}

// AuditSink receives decision records. The engine calls it from a
// background worker, never on the request path.
type AuditSink interface {
	RecordDecision(ctx context.Context, entry *AuditEntry) error
}

// AuditStore is a sink that also supports reading the trail back.
type AuditStore interface {
	AuditSink
	GetDecisionLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}
