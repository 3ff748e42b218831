package authz

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PermissionContext groups permissions by the surface they protect.
type PermissionContext string

const (
	ContextManagement PermissionContext = "management"
	ContextChat       PermissionContext = "chat"
	ContextAPI        PermissionContext = "api"
	ContextDocument   PermissionContext = "document"
	ContextGlobal     PermissionContext = "global"
)

// Permission name format: lowercase, starts with a letter, [a-z0-9_:],
// length 3 to 100.
var permissionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_:]*$`)

func ValidatePermissionName(name string) error {
	if len(name) < 3 || len(name) > 100 {
		return fmt.Errorf("%w: length must be 3-100, got %d", ErrInvalidPermissionName, len(name))
	}
	if !permissionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must be lowercase [a-z0-9_:] and start with a letter", ErrInvalidPermissionName, name)
	}
	return nil
}

// Permission is a named capability in "resource_type:action" form.
type Permission struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	ResourceType string            `json:"resource_type" yaml:"resource_type"`
	Action       string            `json:"action" yaml:"action"`
	Context      PermissionContext `json:"context" yaml:"context"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive     bool              `json:"is_active" yaml:"is_active"`
	IsSystem     bool              `json:"is_system,omitempty" yaml:"is_system,omitempty"`
	CreatedAt    time.Time         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

func NewPermission(id, resourceType, action string, pctx PermissionContext) (*Permission, error) {
	name := resourceType + ":" + action
	if err := ValidatePermissionName(name); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Permission{
		ID:           id,
		Name:         name,
		ResourceType: resourceType,
		Action:       action,
		Context:      pctx,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// FullName is always "resource_type:action".
func (p *Permission) FullName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ResourceType + ":" + p.Action
}

// Deactivate returns an inactive copy. System permissions are immutable.
func (p *Permission) Deactivate() (*Permission, error) {
	if p.IsSystem {
		return nil, fmt.Errorf("deactivate permission %s: %w", p.FullName(), ErrSystemEntityImmutable)
	}
	dup := *p
	dup.IsActive = false
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

func (p *Permission) Activate() *Permission {
	dup := *p
	dup.IsActive = true
	dup.UpdatedAt = time.Now()
	return &dup
}

// Validate checks the stored fields agree with the name format.
func (p *Permission) Validate() error {
	if err := ValidatePermissionName(p.FullName()); err != nil {
		return err
	}
	if p.ResourceType != "" && p.Action != "" && p.Name != "" {
		if p.Name != p.ResourceType+":"+p.Action {
			return fmt.Errorf("%w: name %q does not match %s:%s", ErrInvalidPermissionName, p.Name, p.ResourceType, p.Action)
		}
	}
	return nil
}

// SplitPermissionName splits "resource_type:action" at the first colon.
func SplitPermissionName(name string) (resourceType, action string) {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
