package authz

import "time"

// AuthorizationContext carries everything one request brings to the engine.
// It is built once per request; enrichment returns a new value so callers
// holding a reference never observe mutation.
type AuthorizationContext struct {
	UserID         string `json:"user_id" yaml:"user_id"`
	OrganizationID string `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
	ResourceType   string `json:"resource_type" yaml:"resource_type"`
	Action         string `json:"action" yaml:"action"`
	ResourceID     string `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`

	UserAttributes        map[string]any `json:"user_attributes,omitempty" yaml:"user_attributes,omitempty"`
	ResourceAttributes    map[string]any `json:"resource_attributes,omitempty" yaml:"resource_attributes,omitempty"`
	EnvironmentAttributes map[string]any `json:"environment_attributes,omitempty" yaml:"environment_attributes,omitempty"`

	RequestTime time.Time `json:"request_time" yaml:"request_time"`
}

func NewAuthorizationContext(userID, orgID, resourceType, action string) *AuthorizationContext {
	return &AuthorizationContext{
		UserID:         userID,
		OrganizationID: orgID,
		ResourceType:   resourceType,
		Action:         action,
		RequestTime:    time.Now(),
	}
}

func (c *AuthorizationContext) clone() *AuthorizationContext {
	dup := *c
	dup.UserAttributes = cloneAttrs(c.UserAttributes)
	dup.ResourceAttributes = cloneAttrs(c.ResourceAttributes)
	dup.EnvironmentAttributes = cloneAttrs(c.EnvironmentAttributes)
	return &dup
}

func cloneAttrs(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	dup := make(map[string]any, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}

// WithResourceID returns a copy targeting the given resource.
func (c *AuthorizationContext) WithResourceID(id string) *AuthorizationContext {
	dup := c.clone()
	dup.ResourceID = id
	return dup
}

// WithAction returns a copy requesting a different action.
func (c *AuthorizationContext) WithAction(action string) *AuthorizationContext {
	dup := c.clone()
	dup.Action = action
	return dup
}

func (c *AuthorizationContext) WithUserAttribute(key string, value any) *AuthorizationContext {
	dup := c.clone()
	if dup.UserAttributes == nil {
		dup.UserAttributes = make(map[string]any, 1)
	}
	dup.UserAttributes[key] = value
	return dup
}

func (c *AuthorizationContext) WithEnvironmentAttribute(key string, value any) *AuthorizationContext {
	dup := c.clone()
	if dup.EnvironmentAttributes == nil {
		dup.EnvironmentAttributes = make(map[string]any, 1)
	}
	dup.EnvironmentAttributes[key] = value
	return dup
}

// WithResourceAttributes merges the given attributes into a copy's
// resource map. Used by policy enrichment before ABAC evaluation.
func (c *AuthorizationContext) WithResourceAttributes(attrs map[string]any) *AuthorizationContext {
	dup := c.clone()
	if dup.ResourceAttributes == nil {
		dup.ResourceAttributes = make(map[string]any, len(attrs))
	}
	for k, v := range attrs {
		dup.ResourceAttributes[k] = v
	}
	return dup
}

// EvalMap flattens the context for condition evaluation. Request fields sit
// at the top level; attribute maps nest under user / resource / env so
// conditions address them by dot path ("resource.confidentiality_level").
func (c *AuthorizationContext) EvalMap() map[string]any {
	m := map[string]any{
		"user_id":         c.UserID,
		"organization_id": c.OrganizationID,
		"resource_type":   c.ResourceType,
		"resource_id":     c.ResourceID,
		"action":          c.Action,
		"request_time":    c.RequestTime,
	}
	if c.UserAttributes != nil {
		m["user"] = cloneAttrs(c.UserAttributes)
	}
	if c.ResourceAttributes != nil {
		m["resource"] = cloneAttrs(c.ResourceAttributes)
	}
	if c.EnvironmentAttributes != nil {
		m["env"] = cloneAttrs(c.EnvironmentAttributes)
	}
	return m
}
