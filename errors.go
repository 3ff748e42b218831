package authz

import "errors"

// Sentinel errors returned by entity validation and administrative writes.
// Evaluation-time faults never surface as errors to authorization callers;
// they become Deny decisions with an authorization_error reason.
var (
	ErrNotFound                = errors.New("not found")
	ErrCircularHierarchy       = errors.New("circular hierarchy detected")
	ErrSystemEntityImmutable   = errors.New("system entities cannot be modified")
	ErrCrossOrganizationParent = errors.New("parent must be in the same organization")
	ErrInactiveParent          = errors.New("cannot inherit from an inactive parent")
	ErrParentNotFound          = errors.New("parent not found")
	ErrSelfParent              = errors.New("entity cannot be its own parent")
	ErrInvalidPermissionName   = errors.New("invalid permission name")
	ErrInvalidFolderPath       = errors.New("invalid folder path")
	ErrAssignmentExists        = errors.New("user already has an active assignment in this organization")
	ErrAlreadyRevoked          = errors.New("assignment already revoked")
	ErrExpiryInPast            = errors.New("expiry must be in the future")
)
