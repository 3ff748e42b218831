package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/axdbertuol/authz"
)

// SQLRoleStore persists roles in SQL (squealx)
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func roleParams(r *authz.Role) map[string]any {
	return map[string]any{
		"id":              r.ID,
		"name":            r.Name,
		"description":     r.Description,
		"organization_id": r.Scope.OrgID(),
		"parent_role_id":  r.ParentRoleID,
		"created_by":      r.CreatedBy,
		"is_active":       boolToInt(r.IsActive),
		"is_system":       boolToInt(r.IsSystem),
		"created_at":      r.CreatedAt,
		"updated_at":      r.UpdatedAt,
	}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, r *authz.Role) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	q := `INSERT INTO roles(id, name, description, organization_id, parent_role_id, created_by, is_active, is_system, created_at, updated_at) VALUES(:id, :name, :description, :organization_id, :parent_role_id, :created_by, :is_active, :is_system, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, roleParams(r))
	return err
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, r *authz.Role) error {
	r.UpdatedAt = time.Now()
	q := `UPDATE roles SET name=:name, description=:description, organization_id=:organization_id, parent_role_id=:parent_role_id, created_by=:created_by, is_active=:is_active, is_system=:is_system, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, roleParams(r))
	return err
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, id string) error {
	q := `DELETE FROM roles WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

const roleSelect = `SELECT id, name, description, organization_id, parent_role_id, created_by, is_active, is_system, created_at, updated_at FROM roles`

func scanRoleRow(r interface{ Scan(dest ...any) error }) (*authz.Role, error) {
	var id, name, description, orgID, parentID, createdBy string
	var activeInt, systemInt int
	var createdRaw, updatedRaw any
	if err := r.Scan(&id, &name, &description, &orgID, &parentID, &createdBy, &activeInt, &systemInt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &authz.Role{
		ID:           id,
		Name:         name,
		Description:  description,
		Scope:        authz.OrgScope(orgID),
		ParentRoleID: parentID,
		CreatedBy:    createdBy,
		IsActive:     activeInt != 0,
		IsSystem:     systemInt != 0,
		CreatedAt:    scanTime(createdRaw),
		UpdatedAt:    scanTime(updatedRaw),
	}, nil
}

func (s *SQLRoleStore) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	r, err := s.db.NamedQueryContext(ctx, roleSelect+` WHERE id = :id`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("role %s: %w", id, authz.ErrNotFound)
	}
	return scanRoleRow(r)
}

func (s *SQLRoleStore) ListRoles(ctx context.Context, orgID string) ([]*authz.Role, error) {
	q := roleSelect + ` WHERE organization_id = :organization_id OR organization_id = ''`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.Role, 0)
	for r.Next() {
		role, err := scanRoleRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

// SQLRoleMembershipStore persists user->role grants per organization.
type SQLRoleMembershipStore struct {
	db *squealx.DB
}

func NewSQLRoleMembershipStore(db *squealx.DB) *SQLRoleMembershipStore {
	return &SQLRoleMembershipStore{db: db}
}

func (s *SQLRoleMembershipStore) AssignRole(ctx context.Context, userID, orgID, roleID string) error {
	q := `INSERT OR IGNORE INTO role_memberships(user_id, organization_id, role_id) VALUES(:user_id, :organization_id, :role_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":         userID,
		"organization_id": orgID,
		"role_id":         roleID,
	})
	return err
}

func (s *SQLRoleMembershipStore) RevokeRole(ctx context.Context, userID, orgID, roleID string) error {
	q := `DELETE FROM role_memberships WHERE user_id = :user_id AND organization_id = :organization_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":         userID,
		"organization_id": orgID,
		"role_id":         roleID,
	})
	return err
}

func (s *SQLRoleMembershipStore) ListRoleIDs(ctx context.Context, userID, orgID string) ([]string, error) {
	q := `SELECT role_id FROM role_memberships WHERE user_id = :user_id AND organization_id = :organization_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"user_id":         userID,
		"organization_id": orgID,
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var roleID string
		if err := r.Scan(&roleID); err != nil {
			return nil, err
		}
		out = append(out, roleID)
	}
	return out, nil
}
