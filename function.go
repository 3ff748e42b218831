package authz

import (
	"fmt"
	"time"

	"github.com/axdbertuol/authz/utils"
)

// Valid management permissions a function may carry. Wildcards grant whole
// groups.
var validManagementPermissions = map[string]bool{
	"document:read":     true,
	"document:create":   true,
	"document:update":   true,
	"document:delete":   true,
	"document:share":    true,
	"document:download": true,
	"document:*":        true,
	"user:read":         true,
	"user:create":       true,
	"user:update":       true,
	"user:manage":       true,
	"user:*":            true,
	"area:read":         true,
	"area:manage":       true,
	"area:*":            true,
	"function:read":     true,
	"function:manage":   true,
	"function:*":        true,
	"*:*":               true,
}

func ValidateManagementPermission(perm string) error {
	if !validManagementPermissions[perm] {
		return fmt.Errorf("%w: %q is not a management permission", ErrInvalidPermissionName, perm)
	}
	return nil
}

// ManagementFunction is a named set of management permissions, orthogonal
// to document-area scoping. A user exercises it through a UserFunctionArea
// assignment.
type ManagementFunction struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	OrganizationID string    `json:"organization_id" yaml:"organization_id"`
	Permissions    []string  `json:"permissions" yaml:"permissions"`
	IsActive       bool      `json:"is_active" yaml:"is_active"`
	CreatedAt      time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

func NewManagementFunction(id, name, orgID string, permissions []string) (*ManagementFunction, error) {
	for _, p := range permissions {
		if err := ValidateManagementPermission(p); err != nil {
			return nil, fmt.Errorf("function %s: %w", name, err)
		}
	}
	now := time.Now()
	return &ManagementFunction{
		ID:             id,
		Name:           name,
		OrganizationID: orgID,
		Permissions:    append([]string(nil), permissions...),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// HasPermission reports whether the function grants the required
// permission exactly or through a wildcard ("document:*", "*:*").
func (f *ManagementFunction) HasPermission(required string) bool {
	for _, granted := range f.Permissions {
		if utils.MatchPermission(granted, required) {
			return true
		}
	}
	return false
}

func (f *ManagementFunction) WithPermissions(permissions []string) (*ManagementFunction, error) {
	for _, p := range permissions {
		if err := ValidateManagementPermission(p); err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	dup := *f
	dup.Permissions = append([]string(nil), permissions...)
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

func (f *ManagementFunction) Deactivate() *ManagementFunction {
	dup := *f
	dup.IsActive = false
	dup.UpdatedAt = time.Now()
	return &dup
}

func (f *ManagementFunction) Activate() *ManagementFunction {
	dup := *f
	dup.IsActive = true
	dup.UpdatedAt = time.Now()
	return &dup
}
