package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/axdbertuol/authz"
)

// In-memory store implementations, used in tests and small deployments.
// Each guards its maps with an RWMutex and returns copies so callers never
// share mutable state with the store.

// MemoryPermissionStore keeps permissions and role grants in memory.
type MemoryPermissionStore struct {
	mu          sync.RWMutex
	permissions map[string]*authz.Permission // by name
	roleGrants  map[string]map[string]bool   // roleID -> permission names
}

func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{
		permissions: make(map[string]*authz.Permission),
		roleGrants:  make(map[string]map[string]bool),
	}
}

func (s *MemoryPermissionStore) CreatePermission(ctx context.Context, p *authz.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	dup := *p
	s.permissions[p.FullName()] = &dup
	return nil
}

func (s *MemoryPermissionStore) GetPermission(ctx context.Context, name string) (*authz.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[name]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", name, authz.ErrNotFound)
	}
	dup := *p
	return &dup, nil
}

func (s *MemoryPermissionStore) GrantToRole(ctx context.Context, roleID, permissionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[permissionName]; !ok {
		return fmt.Errorf("permission %s: %w", permissionName, authz.ErrNotFound)
	}
	if _, ok := s.roleGrants[roleID]; !ok {
		s.roleGrants[roleID] = make(map[string]bool)
	}
	s.roleGrants[roleID][permissionName] = true
	return nil
}

func (s *MemoryPermissionStore) RevokeFromRole(ctx context.Context, roleID, permissionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if grants, ok := s.roleGrants[roleID]; ok {
		delete(grants, permissionName)
	}
	return nil
}

func (s *MemoryPermissionStore) ListRolePermissions(ctx context.Context, roleID string) ([]*authz.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.Permission, 0)
	for name := range s.roleGrants[roleID] {
		if p, ok := s.permissions[name]; ok {
			dup := *p
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryRoleStore keeps roles in memory.
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*authz.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*authz.Role)}
}

func (s *MemoryRoleStore) CreateRole(ctx context.Context, r *authz.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	dup := *r
	s.roles[r.ID] = &dup
	return nil
}

func (s *MemoryRoleStore) UpdateRole(ctx context.Context, r *authz.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, authz.ErrNotFound)
	}
	dup := *r
	dup.UpdatedAt = time.Now()
	s.roles[r.ID] = &dup
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, id)
	return nil
}

func (s *MemoryRoleStore) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, authz.ErrNotFound)
	}
	dup := *r
	return &dup, nil
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context, orgID string) ([]*authz.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.Role, 0)
	for _, r := range s.roles {
		if r.Scope.IsGlobal() || r.Scope.OrgID() == orgID {
			dup := *r
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryRoleMembershipStore keeps user->role sets per organization.
type MemoryRoleMembershipStore struct {
	mu    sync.RWMutex
	store map[string]map[string]bool // "org/user" -> role ids
}

func NewMemoryRoleMembershipStore() *MemoryRoleMembershipStore {
	return &MemoryRoleMembershipStore{store: make(map[string]map[string]bool)}
}

func membershipKey(userID, orgID string) string { return orgID + "/" + userID }

func (m *MemoryRoleMembershipStore) AssignRole(ctx context.Context, userID, orgID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey(userID, orgID)
	if _, ok := m.store[key]; !ok {
		m.store[key] = make(map[string]bool)
	}
	m.store[key][roleID] = true
	return nil
}

func (m *MemoryRoleMembershipStore) RevokeRole(ctx context.Context, userID, orgID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.store[membershipKey(userID, orgID)]; ok {
		delete(set, roleID)
	}
	return nil
}

func (m *MemoryRoleMembershipStore) ListRoleIDs(ctx context.Context, userID, orgID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0)
	for roleID := range m.store[membershipKey(userID, orgID)] {
		out = append(out, roleID)
	}
	return out, nil
}

// MemoryPolicyStore keeps policies in memory.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*authz.Policy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]*authz.Policy)}
}

func (s *MemoryPolicyStore) CreatePolicy(ctx context.Context, p *authz.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	dup := clonePolicy(p)
	s.policies[p.ID] = dup
	return nil
}

func (s *MemoryPolicyStore) UpdatePolicy(ctx context.Context, p *authz.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; !ok {
		return fmt.Errorf("policy %s: %w", p.ID, authz.ErrNotFound)
	}
	p.UpdatedAt = time.Now()
	p.Version++
	s.policies[p.ID] = clonePolicy(p)
	return nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
	return nil
}

func (s *MemoryPolicyStore) GetPolicy(ctx context.Context, id string) (*authz.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, authz.ErrNotFound)
	}
	return clonePolicy(p), nil
}

func (s *MemoryPolicyStore) ListPolicies(ctx context.Context, orgID string) ([]*authz.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.Policy, 0)
	for _, p := range s.policies {
		if p.Scope.Contains(orgID) {
			out = append(out, clonePolicy(p))
		}
	}
	return out, nil
}

func (s *MemoryPolicyStore) ListApplicablePolicies(ctx context.Context, resourceType, action, orgID string) ([]*authz.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.Policy, 0)
	for _, p := range s.policies {
		if !p.IsActive {
			continue
		}
		if p.ResourceType != "*" && p.ResourceType != resourceType {
			continue
		}
		if p.Action != "*" && p.Action != action {
			continue
		}
		if !p.Scope.Contains(orgID) {
			continue
		}
		out = append(out, clonePolicy(p))
	}
	return out, nil
}

// MemoryResourceStore keeps resource snapshots in memory.
type MemoryResourceStore struct {
	mu        sync.RWMutex
	resources map[string]*authz.Resource // "type/id"
}

func NewMemoryResourceStore() *MemoryResourceStore {
	return &MemoryResourceStore{resources: make(map[string]*authz.Resource)}
}

func resourceKey(resourceType, id string) string { return resourceType + "/" + id }

func (s *MemoryResourceStore) UpsertResource(ctx context.Context, r *authz.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *r
	dup.Attributes = cloneAttributeMap(r.Attributes)
	s.resources[resourceKey(r.Type, r.ID)] = &dup
	return nil
}

func (s *MemoryResourceStore) GetResource(ctx context.Context, resourceType, id string) (*authz.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[resourceKey(resourceType, id)]
	if !ok {
		return nil, fmt.Errorf("resource %s/%s: %w", resourceType, id, authz.ErrNotFound)
	}
	dup := *r
	dup.Attributes = cloneAttributeMap(r.Attributes)
	return &dup, nil
}

func (s *MemoryResourceStore) ListResources(ctx context.Context, orgID, resourceType string) ([]*authz.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.Resource, 0)
	for _, r := range s.resources {
		if r.Type == resourceType && r.OrganizationID == orgID {
			dup := *r
			dup.Attributes = cloneAttributeMap(r.Attributes)
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryAreaStore keeps areas in memory.
type MemoryAreaStore struct {
	mu    sync.RWMutex
	areas map[string]*authz.Area
}

func NewMemoryAreaStore() *MemoryAreaStore {
	return &MemoryAreaStore{areas: make(map[string]*authz.Area)}
}

func (s *MemoryAreaStore) CreateArea(ctx context.Context, a *authz.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	dup := *a
	s.areas[a.ID] = &dup
	return nil
}

func (s *MemoryAreaStore) UpdateArea(ctx context.Context, a *authz.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.areas[a.ID]; !ok {
		return fmt.Errorf("area %s: %w", a.ID, authz.ErrNotFound)
	}
	dup := *a
	dup.UpdatedAt = time.Now()
	s.areas[a.ID] = &dup
	return nil
}

func (s *MemoryAreaStore) GetArea(ctx context.Context, id string) (*authz.Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.areas[id]
	if !ok {
		return nil, fmt.Errorf("area %s: %w", id, authz.ErrNotFound)
	}
	dup := *a
	return &dup, nil
}

func (s *MemoryAreaStore) ListAreas(ctx context.Context, orgID string) ([]*authz.Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.Area, 0)
	for _, a := range s.areas {
		if a.OrganizationID == orgID {
			dup := *a
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryFunctionStore keeps management functions in memory.
type MemoryFunctionStore struct {
	mu        sync.RWMutex
	functions map[string]*authz.ManagementFunction
}

func NewMemoryFunctionStore() *MemoryFunctionStore {
	return &MemoryFunctionStore{functions: make(map[string]*authz.ManagementFunction)}
}

func (s *MemoryFunctionStore) CreateFunction(ctx context.Context, f *authz.ManagementFunction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	dup := *f
	dup.Permissions = append([]string(nil), f.Permissions...)
	s.functions[f.ID] = &dup
	return nil
}

func (s *MemoryFunctionStore) UpdateFunction(ctx context.Context, f *authz.ManagementFunction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.functions[f.ID]; !ok {
		return fmt.Errorf("function %s: %w", f.ID, authz.ErrNotFound)
	}
	dup := *f
	dup.Permissions = append([]string(nil), f.Permissions...)
	dup.UpdatedAt = time.Now()
	s.functions[f.ID] = &dup
	return nil
}

func (s *MemoryFunctionStore) GetFunction(ctx context.Context, id string) (*authz.ManagementFunction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.functions[id]
	if !ok {
		return nil, fmt.Errorf("function %s: %w", id, authz.ErrNotFound)
	}
	dup := *f
	dup.Permissions = append([]string(nil), f.Permissions...)
	return &dup, nil
}

func (s *MemoryFunctionStore) ListFunctions(ctx context.Context, orgID string) ([]*authz.ManagementFunction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.ManagementFunction, 0)
	for _, f := range s.functions {
		if f.OrganizationID == orgID {
			dup := *f
			dup.Permissions = append([]string(nil), f.Permissions...)
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryAssignmentStore keeps user-function-area assignments in memory.
type MemoryAssignmentStore struct {
	mu          sync.RWMutex
	assignments map[string]*authz.UserFunctionArea
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{assignments: make(map[string]*authz.UserFunctionArea)}
}

func (s *MemoryAssignmentStore) CreateAssignment(ctx context.Context, a *authz.UserFunctionArea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	dup := *a
	s.assignments[a.ID] = &dup
	return nil
}

func (s *MemoryAssignmentStore) UpdateAssignment(ctx context.Context, a *authz.UserFunctionArea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; !ok {
		return fmt.Errorf("assignment %s: %w", a.ID, authz.ErrNotFound)
	}
	dup := *a
	s.assignments[a.ID] = &dup
	return nil
}

func (s *MemoryAssignmentStore) GetAssignment(ctx context.Context, id string) (*authz.UserFunctionArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, authz.ErrNotFound)
	}
	dup := *a
	return &dup, nil
}

// GetUserAssignment returns the newest assignment for the user, active or
// not; the caller applies the validity gate (lazy expiry).
func (s *MemoryAssignmentStore) GetUserAssignment(ctx context.Context, userID, orgID string) (*authz.UserFunctionArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *authz.UserFunctionArea
	for _, a := range s.assignments {
		if a.UserID != userID || a.OrganizationID != orgID {
			continue
		}
		if newest == nil || a.AssignedAt.After(newest.AssignedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("assignment for user %s in %s: %w", userID, orgID, authz.ErrNotFound)
	}
	dup := *newest
	return &dup, nil
}

func (s *MemoryAssignmentStore) ListAreaAssignments(ctx context.Context, areaID string) ([]*authz.UserFunctionArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.UserFunctionArea, 0)
	for _, a := range s.assignments {
		if a.AreaID == areaID {
			dup := *a
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryAuditStore collects decision records in memory.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*authz.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{entries: make([]*authz.AuditEntry, 0)}
}

func (s *MemoryAuditStore) RecordDecision(ctx context.Context, entry *authz.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) GetDecisionLog(ctx context.Context, filter authz.AuditFilter) ([]*authz.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authz.AuditEntry, 0)
	for _, entry := range s.entries {
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		if filter.OrganizationID != "" && entry.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ResourceID != "" && entry.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
