package authz

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the declarative bootstrap format: permissions, roles and their
// grants, memberships, policies, areas, functions and assignments, plus
// engine tuning. Loadable from YAML or JSON and applied in dependency
// order.
type Config struct {
	Version         int                    `json:"version" yaml:"version"`
	Permissions     []*Permission          `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Roles           []*Role                `json:"roles,omitempty" yaml:"roles,omitempty"`
	RolePermissions []RolePermissionConfig `json:"role_permissions,omitempty" yaml:"role_permissions,omitempty"`
	Memberships     []MembershipConfig     `json:"memberships,omitempty" yaml:"memberships,omitempty"`
	Policies        []*Policy              `json:"policies,omitempty" yaml:"policies,omitempty"`
	Areas           []*Area                `json:"areas,omitempty" yaml:"areas,omitempty"`
	Functions       []*ManagementFunction  `json:"functions,omitempty" yaml:"functions,omitempty"`
	Assignments     []*UserFunctionArea    `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	Engine          EngineConfig           `json:"engine,omitempty" yaml:"engine,omitempty"`
}

type RolePermissionConfig struct {
	RoleID     string `json:"role_id" yaml:"role_id"`
	Permission string `json:"permission" yaml:"permission"`
}

type MembershipConfig struct {
	UserID         string `json:"user_id" yaml:"user_id"`
	OrganizationID string `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
	RoleID         string `json:"role_id" yaml:"role_id"`
}

type EngineConfig struct {
	DecisionCacheTTLMillis int `json:"decision_cache_ttl_ms,omitempty" yaml:"decision_cache_ttl_ms,omitempty"`
	DecisionCacheEntries   int `json:"decision_cache_entries,omitempty" yaml:"decision_cache_entries,omitempty"`
	AuditBufferSize        int `json:"audit_buffer_size,omitempty" yaml:"audit_buffer_size,omitempty"`
	BatchWorkerCount       int `json:"batch_worker_count,omitempty" yaml:"batch_worker_count,omitempty"`
}

// ConfigLoader decodes configuration documents.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }
func (c *Config) ToJSON() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }

// Validate checks every embedded entity before anything touches a store.
func (c *Config) Validate() error {
	for _, p := range c.Permissions {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	roleIndex := make(map[string]*Role, len(c.Roles))
	for _, r := range c.Roles {
		if r.ID == "" {
			return fmt.Errorf("role %q missing id", r.Name)
		}
		roleIndex[r.ID] = r
	}
	for _, r := range c.Roles {
		if err := r.ValidateInheritance(c.Roles); err != nil {
			return err
		}
	}
	for _, rp := range c.RolePermissions {
		if _, ok := roleIndex[rp.RoleID]; !ok {
			return fmt.Errorf("role permission references unknown role %s", rp.RoleID)
		}
	}
	for _, p := range c.Policies {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, a := range c.Areas {
		if err := ValidateFolderPath(a.FolderPath); err != nil {
			return fmt.Errorf("area %s: %w", a.ID, err)
		}
	}
	for _, f := range c.Functions {
		for _, perm := range f.Permissions {
			if err := ValidateManagementPermission(perm); err != nil {
				return fmt.Errorf("function %s: %w", f.ID, err)
			}
		}
	}
	for _, a := range c.Assignments {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplyConfig upserts the configuration into the engine's stores in
// dependency order and clears the decision cache once at the end.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, p := range cfg.Permissions {
		if err := e.stores.Permissions.CreatePermission(ctx, p); err != nil {
			return fmt.Errorf("apply permission %s: %w", p.FullName(), err)
		}
	}
	for _, r := range cfg.Roles {
		if err := e.stores.Roles.CreateRole(ctx, r); err != nil {
			return fmt.Errorf("apply role %s: %w", r.ID, err)
		}
	}
	for _, rp := range cfg.RolePermissions {
		if err := e.stores.Permissions.GrantToRole(ctx, rp.RoleID, rp.Permission); err != nil {
			return fmt.Errorf("apply grant %s -> %s: %w", rp.Permission, rp.RoleID, err)
		}
	}
	for _, m := range cfg.Memberships {
		if err := e.stores.Memberships.AssignRole(ctx, m.UserID, m.OrganizationID, m.RoleID); err != nil {
			return fmt.Errorf("apply membership %s -> %s: %w", m.RoleID, m.UserID, err)
		}
	}
	for _, p := range cfg.Policies {
		if err := e.stores.Policies.CreatePolicy(ctx, p); err != nil {
			return fmt.Errorf("apply policy %s: %w", p.ID, err)
		}
	}
	for _, a := range cfg.Areas {
		if err := e.stores.Areas.CreateArea(ctx, a); err != nil {
			return fmt.Errorf("apply area %s: %w", a.ID, err)
		}
	}
	for _, f := range cfg.Functions {
		if err := e.stores.Functions.CreateFunction(ctx, f); err != nil {
			return fmt.Errorf("apply function %s: %w", f.ID, err)
		}
	}
	for _, a := range cfg.Assignments {
		if err := e.stores.Assignments.CreateAssignment(ctx, a); err != nil {
			return fmt.Errorf("apply assignment %s: %w", a.ID, err)
		}
	}
	e.InvalidateDecisions()
	return nil
}
