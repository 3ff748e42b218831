package authz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Administrative writes. Each validates entity invariants before touching
// the store and clears the decision cache afterwards so stale grants never
// survive a mutation. Validation errors surface to the caller unmodified.

func (e *Engine) CreatePolicy(ctx context.Context, p *Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := e.stores.Policies.CreatePolicy(ctx, p); err != nil {
		return fmt.Errorf("create policy %s: %w", p.ID, err)
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) UpdatePolicy(ctx context.Context, p *Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := e.stores.Policies.UpdatePolicy(ctx, p); err != nil {
		return fmt.Errorf("update policy %s: %w", p.ID, err)
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) DeletePolicy(ctx context.Context, id string) error {
	if err := e.stores.Policies.DeletePolicy(ctx, id); err != nil {
		return fmt.Errorf("delete policy %s: %w", id, err)
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) CreatePermission(ctx context.Context, p *Permission) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return e.stores.Permissions.CreatePermission(ctx, p)
}

func (e *Engine) GrantPermissionToRole(ctx context.Context, roleID, permissionName string) error {
	if _, err := e.stores.Permissions.GetPermission(ctx, permissionName); err != nil {
		return fmt.Errorf("grant %s to role %s: %w", permissionName, roleID, err)
	}
	if err := e.stores.Permissions.GrantToRole(ctx, roleID, permissionName); err != nil {
		return err
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) RevokePermissionFromRole(ctx context.Context, roleID, permissionName string) error {
	if err := e.stores.Permissions.RevokeFromRole(ctx, roleID, permissionName); err != nil {
		return err
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) CreateRole(ctx context.Context, r *Role) error {
	hierarchy, err := e.stores.Roles.ListRoles(ctx, r.Scope.OrgID())
	if err != nil {
		return fmt.Errorf("load role hierarchy: %w", err)
	}
	if err := r.ValidateInheritance(hierarchy); err != nil {
		return err
	}
	if err := e.stores.Roles.CreateRole(ctx, r); err != nil {
		return fmt.Errorf("create role %s: %w", r.ID, err)
	}
	e.InvalidateDecisions()
	return nil
}

// SetRoleParent re-parents a role, rejecting cycles and scope violations
// before anything is persisted.
func (e *Engine) SetRoleParent(ctx context.Context, roleID, parentRoleID string) error {
	role, err := e.stores.Roles.GetRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("load role %s: %w", roleID, err)
	}
	updated, err := role.WithParent(parentRoleID)
	if err != nil {
		return err
	}
	hierarchy, err := e.stores.Roles.ListRoles(ctx, role.Scope.OrgID())
	if err != nil {
		return fmt.Errorf("load role hierarchy: %w", err)
	}
	// Validate against the hierarchy as it would look after the write.
	candidate := make([]*Role, 0, len(hierarchy))
	for _, r := range hierarchy {
		if r.ID == updated.ID {
			continue
		}
		candidate = append(candidate, r)
	}
	candidate = append(candidate, updated)
	if err := updated.ValidateInheritance(candidate); err != nil {
		return err
	}
	if err := e.stores.Roles.UpdateRole(ctx, updated); err != nil {
		return fmt.Errorf("update role %s: %w", roleID, err)
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) DeactivateRole(ctx context.Context, roleID string) error {
	role, err := e.stores.Roles.GetRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("load role %s: %w", roleID, err)
	}
	updated, err := role.Deactivate()
	if err != nil {
		return err
	}
	if err := e.stores.Roles.UpdateRole(ctx, updated); err != nil {
		return fmt.Errorf("update role %s: %w", roleID, err)
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) AssignRole(ctx context.Context, userID, orgID, roleID string) error {
	if _, err := e.stores.Roles.GetRole(ctx, roleID); err != nil {
		return fmt.Errorf("assign role %s: %w", roleID, err)
	}
	if err := e.stores.Memberships.AssignRole(ctx, userID, orgID, roleID); err != nil {
		return err
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) RevokeRole(ctx context.Context, userID, orgID, roleID string) error {
	if err := e.stores.Memberships.RevokeRole(ctx, userID, orgID, roleID); err != nil {
		return err
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) CreateArea(ctx context.Context, a *Area) error {
	if err := ValidateFolderPath(a.FolderPath); err != nil {
		return err
	}
	existing, err := e.stores.Areas.ListAreas(ctx, a.OrganizationID)
	if err != nil {
		return fmt.Errorf("load areas: %w", err)
	}
	for _, other := range existing {
		if NormalizeFolderPath(other.FolderPath) == NormalizeFolderPath(a.FolderPath) {
			return fmt.Errorf("%w: folder path %s already used by area %s", ErrInvalidFolderPath, a.FolderPath, other.ID)
		}
	}
	if a.ParentAreaID != "" {
		detached := *a
		detached.ParentAreaID = ""
		if _, err := detached.WithParent(a.ParentAreaID, append(existing, &detached)); err != nil {
			return err
		}
	}
	if err := e.stores.Areas.CreateArea(ctx, a); err != nil {
		return fmt.Errorf("create area %s: %w", a.ID, err)
	}
	e.InvalidateDecisions()
	return nil
}

// SetAreaParent moves an area in the hierarchy. Cycle prevention runs
// before the write, not merely as a traversal guard at read time.
func (e *Engine) SetAreaParent(ctx context.Context, areaID, parentAreaID string) error {
	area, err := e.stores.Areas.GetArea(ctx, areaID)
	if err != nil {
		return fmt.Errorf("load area %s: %w", areaID, err)
	}
	all, err := e.stores.Areas.ListAreas(ctx, area.OrganizationID)
	if err != nil {
		return fmt.Errorf("load areas: %w", err)
	}
	updated, err := area.WithParent(parentAreaID, all)
	if err != nil {
		return err
	}
	if err := e.stores.Areas.UpdateArea(ctx, updated); err != nil {
		return fmt.Errorf("update area %s: %w", areaID, err)
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) CreateFunction(ctx context.Context, f *ManagementFunction) error {
	for _, p := range f.Permissions {
		if err := ValidateManagementPermission(p); err != nil {
			return fmt.Errorf("function %s: %w", f.ID, err)
		}
	}
	if err := e.stores.Functions.CreateFunction(ctx, f); err != nil {
		return fmt.Errorf("create function %s: %w", f.ID, err)
	}
	e.InvalidateDecisions()
	return nil
}

// AssignFunctionArea creates the user's assignment, enforcing at most one
// valid assignment per (user, organization).
func (e *Engine) AssignFunctionArea(ctx context.Context, a *UserFunctionArea) error {
	if err := a.Validate(); err != nil {
		return err
	}
	current, err := e.stores.Assignments.GetUserAssignment(ctx, a.UserID, a.OrganizationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check existing assignment: %w", err)
	}
	if current != nil && current.IsValid(time.Now()) {
		return fmt.Errorf("user %s in organization %s: %w", a.UserID, a.OrganizationID, ErrAssignmentExists)
	}
	if _, err := e.stores.Functions.GetFunction(ctx, a.FunctionID); err != nil {
		return fmt.Errorf("assignment function %s: %w", a.FunctionID, err)
	}
	if _, err := e.stores.Areas.GetArea(ctx, a.AreaID); err != nil {
		return fmt.Errorf("assignment area %s: %w", a.AreaID, err)
	}
	if err := e.stores.Assignments.CreateAssignment(ctx, a); err != nil {
		return fmt.Errorf("create assignment %s: %w", a.ID, err)
	}
	e.InvalidateDecisions()
	return nil
}

func (e *Engine) RevokeFunctionArea(ctx context.Context, assignmentID, revokedBy string) error {
	assignment, err := e.stores.Assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("load assignment %s: %w", assignmentID, err)
	}
	revoked, err := assignment.Revoke(revokedBy, time.Now())
	if err != nil {
		return err
	}
	if err := e.stores.Assignments.UpdateAssignment(ctx, revoked); err != nil {
		return fmt.Errorf("update assignment %s: %w", assignmentID, err)
	}
	e.InvalidateDecisions()
	return nil
}
