package authz

import (
	"fmt"
	"time"
)

// UserFunctionArea binds a user to one management function and one document
// area inside an organization. At most one active assignment per
// (user, organization). Expiry is evaluated lazily at read time; an
// external sweeper may deactivate expired rows but nothing here assumes it
// has run.
type UserFunctionArea struct {
	ID             string    `json:"id" yaml:"id"`
	UserID         string    `json:"user_id" yaml:"user_id"`
	OrganizationID string    `json:"organization_id" yaml:"organization_id"`
	FunctionID     string    `json:"function_id" yaml:"function_id"`
	AreaID         string    `json:"area_id" yaml:"area_id"`
	AssignedBy     string    `json:"assigned_by,omitempty" yaml:"assigned_by,omitempty"`
	AssignedAt     time.Time `json:"assigned_at,omitempty" yaml:"assigned_at,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	RevokedAt      time.Time `json:"revoked_at,omitempty" yaml:"revoked_at,omitempty"`
	RevokedBy      string    `json:"revoked_by,omitempty" yaml:"revoked_by,omitempty"`
	IsActive       bool      `json:"is_active" yaml:"is_active"`
}

// NewUserFunctionArea creates an assignment. A zero expiresAt means no
// expiry; a set one must lie in the future.
func NewUserFunctionArea(id, userID, orgID, functionID, areaID, assignedBy string, expiresAt time.Time) (*UserFunctionArea, error) {
	now := time.Now()
	if !expiresAt.IsZero() && !expiresAt.After(now) {
		return nil, fmt.Errorf("assignment for user %s: %w", userID, ErrExpiryInPast)
	}
	return &UserFunctionArea{
		ID:             id,
		UserID:         userID,
		OrganizationID: orgID,
		FunctionID:     functionID,
		AreaID:         areaID,
		AssignedBy:     assignedBy,
		AssignedAt:     now,
		ExpiresAt:      expiresAt,
		IsActive:       true,
	}, nil
}

func (u *UserFunctionArea) IsExpired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && !now.Before(u.ExpiresAt)
}

func (u *UserFunctionArea) IsRevoked() bool { return !u.RevokedAt.IsZero() }

// IsValid is the single read-time gate: active, not revoked, not expired.
func (u *UserFunctionArea) IsValid(now time.Time) bool {
	return u.IsActive && !u.IsRevoked() && !u.IsExpired(now)
}

// Revoke returns a revoked copy. revoked_at and revoked_by are always set
// together.
func (u *UserFunctionArea) Revoke(by string, at time.Time) (*UserFunctionArea, error) {
	if u.IsRevoked() {
		return nil, fmt.Errorf("assignment %s: %w", u.ID, ErrAlreadyRevoked)
	}
	if by == "" {
		return nil, fmt.Errorf("assignment %s: revoked_by is required", u.ID)
	}
	dup := *u
	dup.RevokedAt = at
	dup.RevokedBy = by
	dup.IsActive = false
	return &dup, nil
}

// Validate checks the invariants that must hold for a stored row.
func (u *UserFunctionArea) Validate() error {
	if u.UserID == "" || u.OrganizationID == "" || u.FunctionID == "" || u.AreaID == "" {
		return fmt.Errorf("assignment %s: user, organization, function and area are all required", u.ID)
	}
	if u.RevokedAt.IsZero() != (u.RevokedBy == "") {
		return fmt.Errorf("assignment %s: revoked_at and revoked_by must be set together", u.ID)
	}
	return nil
}
