package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/axdbertuol/authz/logger"
)

// documentActionPermissions maps a document action to the management
// permission it requires.
var documentActionPermissions = map[string]string{
	"read":     "document:read",
	"view":     "document:read",
	"list":     "document:read",
	"create":   "document:create",
	"upload":   "document:create",
	"write":    "document:update",
	"update":   "document:update",
	"edit":     "document:update",
	"delete":   "document:delete",
	"share":    "document:share",
	"download": "document:download",
}

// DocumentAccessService decides folder and document access by composing
// the user's function-area assignment, the area hierarchy, the management
// function's permissions, and deny policies. Every layer is independently
// necessary: the checks short-circuit on the first failure, unlike the
// allow/deny-override combination in the main engine.
type DocumentAccessService struct {
	areas       AreaStore
	functions   FunctionStore
	assignments AssignmentStore
	policies    PolicyStore
	logger      logger.Logger
	now         func() time.Time
}

func NewDocumentAccessService(areas AreaStore, functions FunctionStore, assignments AssignmentStore, policies PolicyStore, log logger.Logger) *DocumentAccessService {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &DocumentAccessService{
		areas:       areas,
		functions:   functions,
		assignments: assignments,
		policies:    policies,
		logger:      log,
		now:         time.Now,
	}
}

// assignmentChain loads and gates the user's assignment, function and
// area. The returned reason is non-empty exactly when access is denied.
func (s *DocumentAccessService) assignmentChain(ctx context.Context, userID, orgID string) (*UserFunctionArea, *ManagementFunction, *Area, string) {
	assignment, err := s.assignments.GetUserAssignment(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil, "user has no function-area assignment in this organization"
		}
		s.logger.Error("assignment lookup failed", "user_id", userID, "error", err.Error())
		return nil, nil, nil, "assignment lookup failed"
	}
	if !assignment.IsValid(s.now()) {
		return nil, nil, nil, "assignment is inactive, revoked or expired"
	}

	function, err := s.functions.GetFunction(ctx, assignment.FunctionID)
	if err != nil {
		s.logger.Error("function lookup failed", "function_id", assignment.FunctionID, "error", err.Error())
		return nil, nil, nil, "management function lookup failed"
	}
	if !function.IsActive {
		return nil, nil, nil, fmt.Sprintf("management function %s is inactive", function.Name)
	}

	area, err := s.areas.GetArea(ctx, assignment.AreaID)
	if err != nil {
		s.logger.Error("area lookup failed", "area_id", assignment.AreaID, "error", err.Error())
		return nil, nil, nil, "area lookup failed"
	}
	if !area.IsActive {
		return nil, nil, nil, fmt.Sprintf("area %s is inactive", area.Name)
	}
	return assignment, function, area, ""
}

// CanAccessFolder answers whether the user may perform action under
// folderPath: valid assignment, active function and area, path reachable
// from the accessible area set, and the function granting the mapped
// permission.
func (s *DocumentAccessService) CanAccessFolder(ctx context.Context, userID, orgID, folderPath, action string) (bool, string) {
	_, function, area, reason := s.assignmentChain(ctx, userID, orgID)
	if reason != "" {
		return false, reason
	}

	all, err := s.areas.ListAreas(ctx, orgID)
	if err != nil {
		s.logger.Error("area listing failed", "organization_id", orgID, "error", err.Error())
		return false, "area listing failed"
	}
	reachable := false
	for _, accessible := range AccessibleAreas(area, all) {
		if accessible.CanAccessFolder(folderPath) {
			reachable = true
			break
		}
	}
	if !reachable {
		return false, fmt.Sprintf("folder %s is outside the user's accessible areas", folderPath)
	}

	required, ok := documentActionPermissions[action]
	if !ok {
		return false, fmt.Sprintf("unknown document action %q", action)
	}
	if !function.HasPermission(required) {
		return false, fmt.Sprintf("function %s does not grant %s", function.Name, required)
	}
	return true, fmt.Sprintf("access granted via area %s and function %s", area.Name, function.Name)
}

// CanUserAccessDocument runs the folder checks and then the deny-policy
// gate: any matching document policy with effect deny blocks access.
func (s *DocumentAccessService) CanUserAccessDocument(ctx context.Context, userID, orgID, path, action string) (bool, string) {
	ok, reason := s.CanAccessFolder(ctx, userID, orgID, path, action)
	if !ok {
		return false, reason
	}

	policies, err := s.policies.ListApplicablePolicies(ctx, "document", action, orgID)
	if err != nil {
		s.logger.Error("document policy lookup failed", "organization_id", orgID, "error", err.Error())
		return false, "policy lookup failed"
	}
	if len(policies) > 0 {
		SortPoliciesByPriority(policies)
		ac := NewAuthorizationContext(userID, orgID, "document", action)
		ac = ac.WithResourceAttributes(map[string]any{"path": NormalizeFolderPath(path)})
		for _, p := range policies {
			verdict := p.Evaluate(ac)
			if verdict != nil && !*verdict {
				return false, fmt.Sprintf("denied by policy %s", p.ID)
			}
		}
	}
	return true, reason
}

// AccessibleAreas returns the user's own area plus its active ancestors.
func (s *DocumentAccessService) AccessibleAreas(ctx context.Context, userID, orgID string) ([]*Area, error) {
	_, _, area, reason := s.assignmentChain(ctx, userID, orgID)
	if reason != "" {
		return nil, fmt.Errorf("accessible areas for user %s: %s", userID, reason)
	}
	all, err := s.areas.ListAreas(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	return AccessibleAreas(area, all), nil
}

// AccessiblePaths lists each accessible area's folder path and its
// recursive "path/*" marker.
func (s *DocumentAccessService) AccessiblePaths(ctx context.Context, userID, orgID string) ([]string, error) {
	areas, err := s.AccessibleAreas(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	return AccessiblePaths(areas), nil
}
