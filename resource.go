package authz

import "time"

// Resource is the engine's read-only view of a protected object owned by a
// collaborating application. Its attribute map feeds ABAC enrichment.
type Resource struct {
	ID             string         `json:"id" yaml:"id"`
	Type           string         `json:"type" yaml:"type"`
	OrganizationID string         `json:"organization_id" yaml:"organization_id"`
	OwnerID        string         `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	IsActive       bool           `json:"is_active" yaml:"is_active"`
	Attributes     map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// EnrichmentAttributes is the map copied into the request context before
// policy evaluation: every stored attribute plus owner_id, is_active and
// organization_id.
func (r *Resource) EnrichmentAttributes() map[string]any {
	out := make(map[string]any, len(r.Attributes)+3)
	for k, v := range r.Attributes {
		out[k] = v
	}
	out["owner_id"] = r.OwnerID
	out["is_active"] = r.IsActive
	out["organization_id"] = r.OrganizationID
	return out
}
