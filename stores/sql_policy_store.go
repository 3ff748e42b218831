package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/axdbertuol/authz"
)

// SQLPolicyStore persists policies in SQL (squealx). Conditions travel as a
// JSON column; the tagged ConditionValue type round-trips through its own
// marshalers.
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func policyParams(p *authz.Policy) (map[string]any, error) {
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions for policy %s: %w", p.ID, err)
	}
	return map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"description":     p.Description,
		"effect":          string(p.Effect),
		"resource_type":   p.ResourceType,
		"action":          p.Action,
		"conditions_json": string(conditions),
		"organization_id": p.Scope.OrgID(),
		"priority":        p.Priority,
		"is_active":       boolToInt(p.IsActive),
		"version":         p.Version,
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	}, nil
}

func (s *SQLPolicyStore) CreatePolicy(ctx context.Context, p *authz.Policy) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	params, err := policyParams(p)
	if err != nil {
		return err
	}
	q := `INSERT INTO policies(id, name, description, effect, resource_type, action, conditions_json, organization_id, priority, is_active, version, created_at, updated_at) VALUES(:id, :name, :description, :effect, :resource_type, :action, :conditions_json, :organization_id, :priority, :is_active, :version, :created_at, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, params)
	return err
}

func (s *SQLPolicyStore) UpdatePolicy(ctx context.Context, p *authz.Policy) error {
	p.UpdatedAt = time.Now()
	p.Version++
	params, err := policyParams(p)
	if err != nil {
		return err
	}
	q := `UPDATE policies SET name=:name, description=:description, effect=:effect, resource_type=:resource_type, action=:action, conditions_json=:conditions_json, organization_id=:organization_id, priority=:priority, is_active=:is_active, version=:version, updated_at=:updated_at WHERE id=:id`
	_, err = s.db.NamedExecContext(ctx, q, params)
	return err
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM policies WHERE id = :id`, map[string]any{"id": id})
	return err
}

const policySelect = `SELECT id, name, description, effect, resource_type, action, conditions_json, organization_id, priority, is_active, version, created_at, updated_at FROM policies`

func (s *SQLPolicyStore) GetPolicy(ctx context.Context, id string) (*authz.Policy, error) {
	r, err := s.db.NamedQueryContext(ctx, policySelect+` WHERE id = :id`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("policy %s: %w", id, authz.ErrNotFound)
	}
	return scanPolicyRow(r)
}

func scanPolicyRow(r interface{ Scan(dest ...any) error }) (*authz.Policy, error) {
	var id, name, description, effect, resourceType, action, conditionsJSON, orgID string
	var priority, activeInt, version int
	var createdRaw, updatedRaw any
	if err := r.Scan(&id, &name, &description, &effect, &resourceType, &action, &conditionsJSON, &orgID, &priority, &activeInt, &version, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	p := &authz.Policy{
		ID:           id,
		Name:         name,
		Description:  description,
		Effect:       authz.Effect(effect),
		ResourceType: resourceType,
		Action:       action,
		Scope:        authz.OrgScope(orgID),
		Priority:     priority,
		IsActive:     activeInt != 0,
		Version:      version,
		CreatedAt:    scanTime(createdRaw),
		UpdatedAt:    scanTime(updatedRaw),
	}
	if err := json.Unmarshal([]byte(conditionsJSON), &p.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions for policy %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context, orgID string) ([]*authz.Policy, error) {
	q := policySelect + ` WHERE organization_id = :organization_id OR organization_id = ''`
	return s.collect(ctx, q, map[string]any{"organization_id": orgID})
}

func (s *SQLPolicyStore) ListApplicablePolicies(ctx context.Context, resourceType, action, orgID string) ([]*authz.Policy, error) {
	q := policySelect + `
		WHERE is_active = 1
		AND (resource_type = :resource_type OR resource_type = '*')
		AND (action = :action OR action = '*')
		AND (organization_id = :organization_id OR organization_id = '')`
	return s.collect(ctx, q, map[string]any{
		"resource_type":   resourceType,
		"action":          action,
		"organization_id": orgID,
	})
}

func (s *SQLPolicyStore) collect(ctx context.Context, q string, params map[string]any) ([]*authz.Policy, error) {
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.Policy, 0)
	for r.Next() {
		p, err := scanPolicyRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
