package authz

import (
	"fmt"
	"strings"
	"time"
)

// DocumentRoot is the fixed prefix every area folder path lives under.
const DocumentRoot = "/documents"

var forbiddenPathChars = `<>:"|?*`

// ValidateFolderPath enforces the folder path format: rooted under
// DocumentRoot, no forbidden characters, no surrounding whitespace, no
// doubled separators.
func ValidateFolderPath(path string) error {
	if path != strings.TrimSpace(path) {
		return fmt.Errorf("%w: leading or trailing whitespace in %q", ErrInvalidFolderPath, path)
	}
	if path != DocumentRoot && !strings.HasPrefix(path, DocumentRoot+"/") {
		return fmt.Errorf("%w: %q must start with %s", ErrInvalidFolderPath, path, DocumentRoot+"/")
	}
	if strings.ContainsAny(path, forbiddenPathChars) {
		return fmt.Errorf("%w: %q contains one of %s", ErrInvalidFolderPath, path, forbiddenPathChars)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("%w: %q contains doubled separators", ErrInvalidFolderPath, path)
	}
	return nil
}

// NormalizeFolderPath strips trailing separators so path comparisons are
// stable.
func NormalizeFolderPath(path string) string {
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Area maps an organizational unit to a folder subtree. The parent link is
// a raw id; traversals carry visited sets and writes pre-validate
// acyclicity.
type Area struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	OrganizationID string    `json:"organization_id" yaml:"organization_id"`
	ParentAreaID   string    `json:"parent_area_id,omitempty" yaml:"parent_area_id,omitempty"`
	FolderPath     string    `json:"folder_path" yaml:"folder_path"`
	IsActive       bool      `json:"is_active" yaml:"is_active"`
	IsSystem       bool      `json:"is_system,omitempty" yaml:"is_system,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

func NewArea(id, name, orgID, folderPath string) (*Area, error) {
	if err := ValidateFolderPath(folderPath); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Area{
		ID:             id,
		Name:           name,
		OrganizationID: orgID,
		FolderPath:     NormalizeFolderPath(folderPath),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanAccessFolder reports whether path falls inside this area's subtree:
// equal to the area path or strictly below it.
func (a *Area) CanAccessFolder(path string) bool {
	own := NormalizeFolderPath(a.FolderPath)
	target := NormalizeFolderPath(path)
	return target == own || strings.HasPrefix(target, own+"/")
}

func (a *Area) HasParent() bool { return a.ParentAreaID != "" }

func (a *Area) Deactivate() (*Area, error) {
	if a.IsSystem {
		return nil, fmt.Errorf("deactivate area %s: %w", a.Name, ErrSystemEntityImmutable)
	}
	dup := *a
	dup.IsActive = false
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

func (a *Area) Activate() *Area {
	dup := *a
	dup.IsActive = true
	dup.UpdatedAt = time.Now()
	return &dup
}

func (a *Area) WithFolderPath(path string) (*Area, error) {
	if a.IsSystem {
		return nil, fmt.Errorf("change path of area %s: %w", a.Name, ErrSystemEntityImmutable)
	}
	if err := ValidateFolderPath(path); err != nil {
		return nil, err
	}
	dup := *a
	dup.FolderPath = NormalizeFolderPath(path)
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

// WithParent returns a copy re-parented under parentAreaID after walking
// the prospective ancestor chain. A cycle, a cross-organization parent, or
// an inactive parent rejects the write before anything is persisted.
func (a *Area) WithParent(parentAreaID string, all []*Area) (*Area, error) {
	if parentAreaID == a.ID {
		return nil, fmt.Errorf("area %s: %w", a.Name, ErrSelfParent)
	}
	index := indexAreas(all)
	parent, ok := index[parentAreaID]
	if !ok {
		return nil, fmt.Errorf("area %s parent %s: %w", a.Name, parentAreaID, ErrParentNotFound)
	}
	if parent.OrganizationID != a.OrganizationID {
		return nil, fmt.Errorf("area %s parent %s: %w", a.Name, parent.Name, ErrCrossOrganizationParent)
	}
	if !parent.IsActive {
		return nil, fmt.Errorf("area %s parent %s: %w", a.Name, parent.Name, ErrInactiveParent)
	}
	// Walk up from the new parent; finding ourselves means the move would
	// close a cycle.
	visited := make(map[string]bool)
	current := parentAreaID
	for current != "" && !visited[current] {
		if current == a.ID {
			return nil, fmt.Errorf("area %s parent %s: %w", a.Name, parentAreaID, ErrCircularHierarchy)
		}
		visited[current] = true
		node, ok := index[current]
		if !ok {
			break
		}
		current = node.ParentAreaID
	}
	dup := *a
	dup.ParentAreaID = parentAreaID
	dup.UpdatedAt = time.Now()
	return &dup, nil
}

// WithoutParent detaches the area from its parent.
func (a *Area) WithoutParent() *Area {
	dup := *a
	dup.ParentAreaID = ""
	dup.UpdatedAt = time.Now()
	return &dup
}

// IsChildOf walks the parent chain looking for ancestorID.
func (a *Area) IsChildOf(all []*Area, ancestorID string) bool {
	index := indexAreas(all)
	visited := make(map[string]bool)
	current := a.ParentAreaID
	for current != "" && !visited[current] {
		if current == ancestorID {
			return true
		}
		visited[current] = true
		node, ok := index[current]
		if !ok {
			break
		}
		current = node.ParentAreaID
	}
	return false
}

// AccessibleAreas returns the user's own area followed by its active
// ancestors, nearest first. Descendant areas are never implicitly
// accessible. Missing or revisited parent ids stop the walk.
func AccessibleAreas(userArea *Area, all []*Area) []*Area {
	if userArea == nil {
		return nil
	}
	out := []*Area{userArea}
	index := indexAreas(all)
	visited := map[string]bool{userArea.ID: true}
	current := userArea.ParentAreaID
	for current != "" && !visited[current] {
		visited[current] = true
		ancestor, ok := index[current]
		if !ok {
			break
		}
		if ancestor.IsActive {
			out = append(out, ancestor)
		}
		current = ancestor.ParentAreaID
	}
	return out
}

// AccessiblePaths yields, for each area, its folder path and a recursive
// "path/*" marker.
func AccessiblePaths(areas []*Area) []string {
	out := make([]string, 0, len(areas)*2)
	for _, a := range areas {
		p := NormalizeFolderPath(a.FolderPath)
		out = append(out, p, p+"/*")
	}
	return out
}

func indexAreas(areas []*Area) map[string]*Area {
	index := make(map[string]*Area, len(areas))
	for _, a := range areas {
		index[a.ID] = a
	}
	return index
}
