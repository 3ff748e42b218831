package authz

import "gopkg.in/yaml.v3"

// Scope says whether an entity is global or bound to a single organization.
// It replaces scattered "organization id is empty" checks with one type.
type Scope struct {
	org string
}

// GlobalScope is the scope shared by every organization.
func GlobalScope() Scope { return Scope{} }

// OrgScope binds an entity to one organization. An empty id is the
// global scope.
func OrgScope(orgID string) Scope { return Scope{org: orgID} }

func (s Scope) IsGlobal() bool { return s.org == "" }

// OrgID returns the owning organization id, empty for global scope.
func (s Scope) OrgID() string { return s.org }

// Contains reports whether the scope applies to the given organization.
// Global scope contains every organization.
func (s Scope) Contains(orgID string) bool {
	return s.org == "" || s.org == orgID
}

func (s Scope) String() string {
	if s.org == "" {
		return "global"
	}
	return s.org
}

// Scope serializes as the bare organization id so config files read
// naturally: organization_id: "org-1" (omitted or empty means global).

func (s Scope) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.org + `"`), nil
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	v := string(data)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	if v == "null" || v == "global" {
		v = ""
	}
	s.org = v
	return nil
}

func (s Scope) MarshalYAML() (any, error) { return s.org, nil }

func (s *Scope) UnmarshalYAML(node *yaml.Node) error {
	var v string
	if err := node.Decode(&v); err != nil {
		return err
	}
	if v == "global" {
		v = ""
	}
	s.org = v
	return nil
}
