package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/axdbertuol/authz"
)

// SQLAreaStore persists document areas in SQL (squealx)
type SQLAreaStore struct {
	db *squealx.DB
}

func NewSQLAreaStore(db *squealx.DB) *SQLAreaStore {
	return &SQLAreaStore{db: db}
}

func areaParams(a *authz.Area) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"name":            a.Name,
		"organization_id": a.OrganizationID,
		"parent_area_id":  a.ParentAreaID,
		"folder_path":     a.FolderPath,
		"is_active":       boolToInt(a.IsActive),
		"is_system":       boolToInt(a.IsSystem),
		"created_at":      a.CreatedAt,
		"updated_at":      a.UpdatedAt,
	}
}

func (s *SQLAreaStore) CreateArea(ctx context.Context, a *authz.Area) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	q := `INSERT INTO areas(id, name, organization_id, parent_area_id, folder_path, is_active, is_system, created_at, updated_at) VALUES(:id, :name, :organization_id, :parent_area_id, :folder_path, :is_active, :is_system, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, areaParams(a))
	return err
}

func (s *SQLAreaStore) UpdateArea(ctx context.Context, a *authz.Area) error {
	a.UpdatedAt = time.Now()
	q := `UPDATE areas SET name=:name, organization_id=:organization_id, parent_area_id=:parent_area_id, folder_path=:folder_path, is_active=:is_active, is_system=:is_system, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, areaParams(a))
	return err
}

func (s *SQLAreaStore) GetArea(ctx context.Context, id string) (*authz.Area, error) {
	q := `SELECT id, name, organization_id, parent_area_id, folder_path, is_active, is_system, created_at, updated_at FROM areas WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("area %s: %w", id, authz.ErrNotFound)
	}
	return scanAreaRow(r)
}

func scanAreaRow(r interface{ Scan(dest ...any) error }) (*authz.Area, error) {
	var id, name, orgID, parentID, folderPath string
	var activeInt, systemInt int
	var createdRaw, updatedRaw any
	if err := r.Scan(&id, &name, &orgID, &parentID, &folderPath, &activeInt, &systemInt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &authz.Area{
		ID:             id,
		Name:           name,
		OrganizationID: orgID,
		ParentAreaID:   parentID,
		FolderPath:     folderPath,
		IsActive:       activeInt != 0,
		IsSystem:       systemInt != 0,
		CreatedAt:      scanTime(createdRaw),
		UpdatedAt:      scanTime(updatedRaw),
	}, nil
}

func (s *SQLAreaStore) ListAreas(ctx context.Context, orgID string) ([]*authz.Area, error) {
	q := `SELECT id, name, organization_id, parent_area_id, folder_path, is_active, is_system, created_at, updated_at FROM areas WHERE organization_id = :organization_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.Area, 0)
	for r.Next() {
		a, err := scanAreaRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// SQLFunctionStore persists management functions in SQL (squealx)
type SQLFunctionStore struct {
	db *squealx.DB
}

func NewSQLFunctionStore(db *squealx.DB) *SQLFunctionStore {
	return &SQLFunctionStore{db: db}
}

func functionParams(f *authz.ManagementFunction) map[string]any {
	perms, _ := json.Marshal(f.Permissions)
	return map[string]any{
		"id":               f.ID,
		"name":             f.Name,
		"description":      f.Description,
		"organization_id":  f.OrganizationID,
		"permissions_json": string(perms),
		"is_active":        boolToInt(f.IsActive),
		"created_at":       f.CreatedAt,
		"updated_at":       f.UpdatedAt,
	}
}

func (s *SQLFunctionStore) CreateFunction(ctx context.Context, f *authz.ManagementFunction) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}
	q := `INSERT INTO functions(id, name, description, organization_id, permissions_json, is_active, created_at, updated_at) VALUES(:id, :name, :description, :organization_id, :permissions_json, :is_active, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, functionParams(f))
	return err
}

func (s *SQLFunctionStore) UpdateFunction(ctx context.Context, f *authz.ManagementFunction) error {
	f.UpdatedAt = time.Now()
	q := `UPDATE functions SET name=:name, description=:description, organization_id=:organization_id, permissions_json=:permissions_json, is_active=:is_active, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, functionParams(f))
	return err
}

func (s *SQLFunctionStore) GetFunction(ctx context.Context, id string) (*authz.ManagementFunction, error) {
	q := `SELECT id, name, description, organization_id, permissions_json, is_active, created_at, updated_at FROM functions WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("function %s: %w", id, authz.ErrNotFound)
	}
	return scanFunctionRow(r)
}

func scanFunctionRow(r interface{ Scan(dest ...any) error }) (*authz.ManagementFunction, error) {
	var id, name, description, orgID, permsJSON string
	var activeInt int
	var createdRaw, updatedRaw any
	if err := r.Scan(&id, &name, &description, &orgID, &permsJSON, &activeInt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	f := &authz.ManagementFunction{
		ID:             id,
		Name:           name,
		Description:    description,
		OrganizationID: orgID,
		IsActive:       activeInt != 0,
		CreatedAt:      scanTime(createdRaw),
		UpdatedAt:      scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(permsJSON), &f.Permissions)
	return f, nil
}

func (s *SQLFunctionStore) ListFunctions(ctx context.Context, orgID string) ([]*authz.ManagementFunction, error) {
	q := `SELECT id, name, description, organization_id, permissions_json, is_active, created_at, updated_at FROM functions WHERE organization_id = :organization_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.ManagementFunction, 0)
	for r.Next() {
		f, err := scanFunctionRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// SQLAssignmentStore persists user-function-area assignments in SQL (squealx)
type SQLAssignmentStore struct {
	db *squealx.DB
}

func NewSQLAssignmentStore(db *squealx.DB) *SQLAssignmentStore {
	return &SQLAssignmentStore{db: db}
}

func assignmentParams(a *authz.UserFunctionArea) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"user_id":         a.UserID,
		"organization_id": a.OrganizationID,
		"function_id":     a.FunctionID,
		"area_id":         a.AreaID,
		"assigned_by":     a.AssignedBy,
		"assigned_at":     a.AssignedAt,
		"expires_at":      sqlNullTimeOrNil(a.ExpiresAt),
		"revoked_at":      sqlNullTimeOrNil(a.RevokedAt),
		"revoked_by":      a.RevokedBy,
		"is_active":       boolToInt(a.IsActive),
	}
}

func (s *SQLAssignmentStore) CreateAssignment(ctx context.Context, a *authz.UserFunctionArea) error {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	q := `INSERT INTO user_function_areas(id, user_id, organization_id, function_id, area_id, assigned_by, assigned_at, expires_at, revoked_at, revoked_by, is_active) VALUES(:id, :user_id, :organization_id, :function_id, :area_id, :assigned_by, :assigned_at, :expires_at, :revoked_at, :revoked_by, :is_active)`
	_, err := s.db.NamedExecContext(ctx, q, assignmentParams(a))
	return err
}

func (s *SQLAssignmentStore) UpdateAssignment(ctx context.Context, a *authz.UserFunctionArea) error {
	q := `UPDATE user_function_areas SET user_id=:user_id, organization_id=:organization_id, function_id=:function_id, area_id=:area_id, assigned_by=:assigned_by, assigned_at=:assigned_at, expires_at=:expires_at, revoked_at=:revoked_at, revoked_by=:revoked_by, is_active=:is_active WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, assignmentParams(a))
	return err
}

func (s *SQLAssignmentStore) GetAssignment(ctx context.Context, id string) (*authz.UserFunctionArea, error) {
	q := assignmentSelect + ` WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("assignment %s: %w", id, authz.ErrNotFound)
	}
	return scanAssignmentRow(r)
}

// GetUserAssignment returns the newest assignment regardless of state; the
// caller applies the validity gate (lazy expiry).
func (s *SQLAssignmentStore) GetUserAssignment(ctx context.Context, userID, orgID string) (*authz.UserFunctionArea, error) {
	q := assignmentSelect + ` WHERE user_id = :user_id AND organization_id = :organization_id ORDER BY assigned_at DESC LIMIT 1`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"user_id":         userID,
		"organization_id": orgID,
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("assignment for user %s in %s: %w", userID, orgID, authz.ErrNotFound)
	}
	return scanAssignmentRow(r)
}

func (s *SQLAssignmentStore) ListAreaAssignments(ctx context.Context, areaID string) ([]*authz.UserFunctionArea, error) {
	q := assignmentSelect + ` WHERE area_id = :area_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"area_id": areaID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.UserFunctionArea, 0)
	for r.Next() {
		a, err := scanAssignmentRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

const assignmentSelect = `SELECT id, user_id, organization_id, function_id, area_id, assigned_by, assigned_at, expires_at, revoked_at, revoked_by, is_active FROM user_function_areas`

func scanAssignmentRow(r interface{ Scan(dest ...any) error }) (*authz.UserFunctionArea, error) {
	var id, userID, orgID, functionID, areaID, assignedBy, revokedBy string
	var assignedRaw, expiresRaw, revokedRaw any
	var activeInt int
	if err := r.Scan(&id, &userID, &orgID, &functionID, &areaID, &assignedBy, &assignedRaw, &expiresRaw, &revokedRaw, &revokedBy, &activeInt); err != nil {
		return nil, err
	}
	return &authz.UserFunctionArea{
		ID:             id,
		UserID:         userID,
		OrganizationID: orgID,
		FunctionID:     functionID,
		AreaID:         areaID,
		AssignedBy:     assignedBy,
		AssignedAt:     scanTime(assignedRaw),
		ExpiresAt:      scanTime(expiresRaw),
		RevokedAt:      scanTime(revokedRaw),
		RevokedBy:      revokedBy,
		IsActive:       activeInt != 0,
	}, nil
}
