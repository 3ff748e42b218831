package authz

import (
	"errors"
	"testing"
)

func TestRoleSystemImmutability(t *testing.T) {
	r := NewRole("r1", "superadmin", GlobalScope(), "root")
	r.IsSystem = true

	if _, err := r.Deactivate(); !errors.Is(err, ErrSystemEntityImmutable) {
		t.Fatalf("expected ErrSystemEntityImmutable, got %v", err)
	}
	if _, err := r.WithParent("r2"); !errors.Is(err, ErrSystemEntityImmutable) {
		t.Fatalf("expected ErrSystemEntityImmutable, got %v", err)
	}
	if _, err := r.WithoutParent(); !errors.Is(err, ErrSystemEntityImmutable) {
		t.Fatalf("expected ErrSystemEntityImmutable, got %v", err)
	}
}

func TestRoleWithParentCopies(t *testing.T) {
	r := NewRole("r1", "editor", OrgScope("org-1"), "admin")
	dup, err := r.WithParent("r0")
	if err != nil {
		t.Fatalf("with parent: %v", err)
	}
	if dup.ParentRoleID != "r0" {
		t.Fatalf("parent not set on copy")
	}
	if r.ParentRoleID != "" {
		t.Fatalf("original mutated")
	}
	if _, err := r.WithParent("r1"); !errors.Is(err, ErrSelfParent) {
		t.Fatalf("expected ErrSelfParent, got %v", err)
	}
}

func TestRoleValidateInheritance(t *testing.T) {
	global := NewRole("g1", "viewer", GlobalScope(), "root")
	orgA := NewRole("a1", "editor", OrgScope("org-a"), "admin")
	orgA.ParentRoleID = "g1"
	orgB := NewRole("b1", "editor", OrgScope("org-b"), "admin")

	hierarchy := []*Role{global, orgA, orgB}

	// org role may inherit from global
	if err := orgA.ValidateInheritance(hierarchy); err != nil {
		t.Fatalf("org inheriting from global should pass: %v", err)
	}

	// global may not inherit from org
	bad := NewRole("g2", "broken", GlobalScope(), "root")
	bad.ParentRoleID = "a1"
	if err := bad.ValidateInheritance(append(hierarchy, bad)); !errors.Is(err, ErrCrossOrganizationParent) {
		t.Fatalf("expected ErrCrossOrganizationParent, got %v", err)
	}

	// org roles must share the organization
	cross := NewRole("a2", "cross", OrgScope("org-a"), "admin")
	cross.ParentRoleID = "b1"
	if err := cross.ValidateInheritance(append(hierarchy, cross)); !errors.Is(err, ErrCrossOrganizationParent) {
		t.Fatalf("expected ErrCrossOrganizationParent, got %v", err)
	}

	// missing parent
	orphan := NewRole("a3", "orphan", OrgScope("org-a"), "admin")
	orphan.ParentRoleID = "nope"
	if err := orphan.ValidateInheritance(hierarchy); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}

	// inactive parent
	inactive := NewRole("a4", "inactive-parent", OrgScope("org-a"), "admin")
	inactive.IsActive = false
	child := NewRole("a5", "child", OrgScope("org-a"), "admin")
	child.ParentRoleID = "a4"
	if err := child.ValidateInheritance([]*Role{inactive, child}); !errors.Is(err, ErrInactiveParent) {
		t.Fatalf("expected ErrInactiveParent, got %v", err)
	}
}

func TestRoleCycleDetection(t *testing.T) {
	a := NewRole("a", "a", OrgScope("org-1"), "admin")
	b := NewRole("b", "b", OrgScope("org-1"), "admin")
	c := NewRole("c", "c", OrgScope("org-1"), "admin")
	a.ParentRoleID = "b"
	b.ParentRoleID = "c"
	c.ParentRoleID = "a"
	hierarchy := []*Role{a, b, c}

	if err := a.ValidateInheritance(hierarchy); !errors.Is(err, ErrCircularHierarchy) {
		t.Fatalf("expected ErrCircularHierarchy, got %v", err)
	}
	// traversal over cyclic data still terminates
	if !a.IsDescendantOf(hierarchy, "c") {
		t.Fatalf("a should be descendant of c")
	}
	if a.IsDescendantOf(hierarchy, "zzz") {
		t.Fatalf("unknown ancestor should be false")
	}
}

func TestRoleHierarchyPath(t *testing.T) {
	root := NewRole("root", "root", GlobalScope(), "sys")
	mid := NewRole("mid", "mid", GlobalScope(), "sys")
	mid.ParentRoleID = "root"
	leaf := NewRole("leaf", "leaf", OrgScope("org-1"), "admin")
	leaf.ParentRoleID = "mid"
	hierarchy := []*Role{root, mid, leaf}

	path := leaf.HierarchyPath(hierarchy)
	if len(path) != 3 || path[0] != "root" || path[2] != "leaf" {
		t.Fatalf("unexpected path: %v", path)
	}
}
