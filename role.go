package authz

import (
	"fmt"
	"time"
)

// Role grants a set of permissions to its members and, transitively, the
// permissions of its ancestor chain. Parent links are stored as raw ids;
// every traversal carries a visited set so corrupted (cyclic) data still
// terminates.
type Role struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Scope        Scope     `json:"organization_id" yaml:"organization_id,omitempty"`
	ParentRoleID string    `json:"parent_role_id,omitempty" yaml:"parent_role_id,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
	IsSystem     bool      `json:"is_system,omitempty" yaml:"is_system,omitempty"`
}

func NewRole(id, name string, scope Scope, createdBy string) *Role {
	now := time.Now()
	return &Role{
		ID:        id,
		Name:      name,
		Scope:     scope,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
}

func (r *Role) IsGlobal() bool  { return r.Scope.IsGlobal() }
func (r *Role) HasParent() bool { return r.ParentRoleID != "" }

func (r *Role) WithDescription(description string) *Role {
	dup := *r
	dup.Description = description
	dup.UpdatedAt = time.Now()
	return &dup
}

func (r *Role) Deactivate() (*Role, error) {
	if r.IsSystem {
		return nil, fmt.Errorf("deactivate role %s: %w", r.Name, ErrSystemEntityImmutable)
	}
	dup := *r
	dup.IsActive = false
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

func (r *Role) Activate() *Role {
	dup := *r
	dup.IsActive = true
	dup.UpdatedAt = time.Now()
	return &dup
}

// WithParent returns a copy inheriting from the given role. The full
// hierarchy rules (cycles, scope, parent state) are checked separately by
// ValidateInheritance against the role set about to be persisted.
func (r *Role) WithParent(parentRoleID string) (*Role, error) {
	if r.IsSystem {
		return nil, fmt.Errorf("set parent on role %s: %w", r.Name, ErrSystemEntityImmutable)
	}
	if parentRoleID == r.ID {
		return nil, fmt.Errorf("role %s: %w", r.Name, ErrSelfParent)
	}
	dup := *r
	dup.ParentRoleID = parentRoleID
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

func (r *Role) WithoutParent() (*Role, error) {
	if r.IsSystem {
		return nil, fmt.Errorf("remove parent on role %s: %w", r.Name, ErrSystemEntityImmutable)
	}
	dup := *r
	dup.ParentRoleID = ""
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

// IsDescendantOf walks the parent chain looking for ancestorID. A missing
// or revisited id stops the walk.
func (r *Role) IsDescendantOf(hierarchy []*Role, ancestorID string) bool {
	if !r.HasParent() {
		return false
	}
	index := indexRoles(hierarchy)
	visited := make(map[string]bool)
	current := r.ParentRoleID
	for current != "" && !visited[current] {
		if current == ancestorID {
			return true
		}
		visited[current] = true
		parent, ok := index[current]
		if !ok {
			break
		}
		current = parent.ParentRoleID
	}
	return false
}

// HierarchyPath returns the inheritance chain root first, ending at this
// role.
func (r *Role) HierarchyPath(hierarchy []*Role) []string {
	index := indexRoles(hierarchy)
	path := make([]string, 0, 4)
	visited := make(map[string]bool)
	current := r
	for current != nil && !visited[current.ID] {
		path = append([]string{current.ID}, path...)
		visited[current.ID] = true
		if current.ParentRoleID == "" {
			break
		}
		current = index[current.ParentRoleID]
	}
	return path
}

// ValidateInheritance enforces the hierarchy rules before a write is
// persisted: no cycles, parent exists and is active, and scopes agree. A
// global role may be the parent of an organization role, never the reverse;
// two organization roles must share the organization.
func (r *Role) ValidateInheritance(hierarchy []*Role) error {
	if !r.HasParent() {
		return nil
	}
	if r.ParentRoleID == r.ID {
		return fmt.Errorf("role %s: %w", r.Name, ErrSelfParent)
	}
	if r.IsDescendantOf(hierarchy, r.ID) {
		return fmt.Errorf("role %s: %w", r.Name, ErrCircularHierarchy)
	}
	var parent *Role
	for _, candidate := range hierarchy {
		if candidate.ID == r.ParentRoleID {
			parent = candidate
			break
		}
	}
	if parent == nil {
		return fmt.Errorf("role %s parent %s: %w", r.Name, r.ParentRoleID, ErrParentNotFound)
	}
	if !parent.IsActive {
		return fmt.Errorf("role %s parent %s: %w", r.Name, parent.Name, ErrInactiveParent)
	}
	if r.IsGlobal() && !parent.IsGlobal() {
		return fmt.Errorf("global role %s cannot inherit from organization role %s: %w", r.Name, parent.Name, ErrCrossOrganizationParent)
	}
	if !r.IsGlobal() && !parent.IsGlobal() && r.Scope.OrgID() != parent.Scope.OrgID() {
		return fmt.Errorf("role %s and parent %s: %w", r.Name, parent.Name, ErrCrossOrganizationParent)
	}
	return nil
}

func indexRoles(roles []*Role) map[string]*Role {
	index := make(map[string]*Role, len(roles))
	for _, r := range roles {
		index[r.ID] = r
	}
	return index
}
