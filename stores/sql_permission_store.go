package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/axdbertuol/authz"
)

// SQLPermissionStore persists permissions and role grants in SQL (squealx)
type SQLPermissionStore struct {
	db *squealx.DB
}

func NewSQLPermissionStore(db *squealx.DB) *SQLPermissionStore {
	return &SQLPermissionStore{db: db}
}

func (s *SQLPermissionStore) CreatePermission(ctx context.Context, p *authz.Permission) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	q := `INSERT INTO permissions(name, id, resource_type, action, context, description, is_active, is_system, created_at, updated_at) VALUES(:name, :id, :resource_type, :action, :context, :description, :is_active, :is_system, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"name":          p.FullName(),
		"id":            p.ID,
		"resource_type": p.ResourceType,
		"action":        p.Action,
		"context":       string(p.Context),
		"description":   p.Description,
		"is_active":     boolToInt(p.IsActive),
		"is_system":     boolToInt(p.IsSystem),
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	})
	return err
}

func (s *SQLPermissionStore) GetPermission(ctx context.Context, name string) (*authz.Permission, error) {
	q := `SELECT name, id, resource_type, action, context, description, is_active, is_system, created_at, updated_at FROM permissions WHERE name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("permission %s: %w", name, authz.ErrNotFound)
	}
	return scanPermissionRow(r)
}

func scanPermissionRow(r interface{ Scan(dest ...any) error }) (*authz.Permission, error) {
	var name, id, resourceType, action, pctx, description string
	var activeInt, systemInt int
	var createdRaw, updatedRaw any
	if err := r.Scan(&name, &id, &resourceType, &action, &pctx, &description, &activeInt, &systemInt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &authz.Permission{
		ID:           id,
		Name:         name,
		ResourceType: resourceType,
		Action:       action,
		Context:      authz.PermissionContext(pctx),
		Description:  description,
		IsActive:     activeInt != 0,
		IsSystem:     systemInt != 0,
		CreatedAt:    scanTime(createdRaw),
		UpdatedAt:    scanTime(updatedRaw),
	}, nil
}

func (s *SQLPermissionStore) GrantToRole(ctx context.Context, roleID, permissionName string) error {
	if _, err := s.GetPermission(ctx, permissionName); err != nil {
		return err
	}
	q := `INSERT OR IGNORE INTO role_permissions(role_id, permission_name) VALUES(:role_id, :permission_name)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"role_id":         roleID,
		"permission_name": permissionName,
	})
	return err
}

func (s *SQLPermissionStore) RevokeFromRole(ctx context.Context, roleID, permissionName string) error {
	q := `DELETE FROM role_permissions WHERE role_id = :role_id AND permission_name = :permission_name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"role_id":         roleID,
		"permission_name": permissionName,
	})
	return err
}

func (s *SQLPermissionStore) ListRolePermissions(ctx context.Context, roleID string) ([]*authz.Permission, error) {
	q := `SELECT p.name, p.id, p.resource_type, p.action, p.context, p.description, p.is_active, p.is_system, p.created_at, p.updated_at
		FROM permissions p JOIN role_permissions rp ON rp.permission_name = p.name
		WHERE rp.role_id = :role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.Permission, 0)
	for r.Next() {
		p, err := scanPermissionRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
