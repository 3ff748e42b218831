package authz

import "time"

// Builders provide a fluent API for composing the core entities.

// ContextBuilder builds an AuthorizationContext.
type ContextBuilder struct {
	c *AuthorizationContext
}

func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{c: &AuthorizationContext{RequestTime: time.Now()}}
}

func (b *ContextBuilder) User(id string) *ContextBuilder         { b.c.UserID = id; return b }
func (b *ContextBuilder) Organization(id string) *ContextBuilder { b.c.OrganizationID = id; return b }
func (b *ContextBuilder) Resource(resourceType, id string) *ContextBuilder {
	b.c.ResourceType = resourceType
	b.c.ResourceID = id
	return b
}
func (b *ContextBuilder) ResourceType(t string) *ContextBuilder { b.c.ResourceType = t; return b }
func (b *ContextBuilder) Action(a string) *ContextBuilder       { b.c.Action = a; return b }
func (b *ContextBuilder) UserAttr(k string, v any) *ContextBuilder {
	if b.c.UserAttributes == nil {
		b.c.UserAttributes = map[string]any{}
	}
	b.c.UserAttributes[k] = v
	return b
}
func (b *ContextBuilder) ResourceAttr(k string, v any) *ContextBuilder {
	if b.c.ResourceAttributes == nil {
		b.c.ResourceAttributes = map[string]any{}
	}
	b.c.ResourceAttributes[k] = v
	return b
}
func (b *ContextBuilder) EnvAttr(k string, v any) *ContextBuilder {
	if b.c.EnvironmentAttributes == nil {
		b.c.EnvironmentAttributes = map[string]any{}
	}
	b.c.EnvironmentAttributes[k] = v
	return b
}
func (b *ContextBuilder) Build() *AuthorizationContext { return b.c }

// PolicyBuilder builds a Policy.
type PolicyBuilder struct {
	p *Policy
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{p: &Policy{IsActive: true}}
}

func (b *PolicyBuilder) ID(id string) *PolicyBuilder            { b.p.ID = id; return b }
func (b *PolicyBuilder) Name(n string) *PolicyBuilder           { b.p.Name = n; return b }
func (b *PolicyBuilder) Effect(e Effect) *PolicyBuilder         { b.p.Effect = e; return b }
func (b *PolicyBuilder) ResourceType(t string) *PolicyBuilder   { b.p.ResourceType = t; return b }
func (b *PolicyBuilder) Action(a string) *PolicyBuilder         { b.p.Action = a; return b }
func (b *PolicyBuilder) Scope(s Scope) *PolicyBuilder           { b.p.Scope = s; return b }
func (b *PolicyBuilder) Priority(prio int) *PolicyBuilder       { b.p.Priority = prio; return b }
func (b *PolicyBuilder) Active(active bool) *PolicyBuilder      { b.p.IsActive = active; return b }
func (b *PolicyBuilder) Condition(attribute string, op Operator, value ConditionValue) *PolicyBuilder {
	b.p.Conditions = append(b.p.Conditions, Condition{Attribute: attribute, Operator: op, Value: value})
	return b
}
func (b *PolicyBuilder) Build() *Policy { return b.p }

// RoleBuilder builds a Role.
type RoleBuilder struct {
	r *Role
}

func NewRoleBuilder() *RoleBuilder {
	return &RoleBuilder{r: &Role{IsActive: true, CreatedAt: time.Now()}}
}

func (b *RoleBuilder) ID(id string) *RoleBuilder          { b.r.ID = id; return b }
func (b *RoleBuilder) Name(n string) *RoleBuilder         { b.r.Name = n; return b }
func (b *RoleBuilder) Scope(s Scope) *RoleBuilder         { b.r.Scope = s; return b }
func (b *RoleBuilder) Parent(id string) *RoleBuilder      { b.r.ParentRoleID = id; return b }
func (b *RoleBuilder) System(system bool) *RoleBuilder    { b.r.IsSystem = system; return b }
func (b *RoleBuilder) Active(active bool) *RoleBuilder    { b.r.IsActive = active; return b }
func (b *RoleBuilder) CreatedBy(id string) *RoleBuilder   { b.r.CreatedBy = id; return b }
func (b *RoleBuilder) Description(d string) *RoleBuilder  { b.r.Description = d; return b }
func (b *RoleBuilder) Build() *Role                       { return b.r }

// AreaBuilder builds an Area.
type AreaBuilder struct {
	a *Area
}

func NewAreaBuilder() *AreaBuilder {
	return &AreaBuilder{a: &Area{IsActive: true, CreatedAt: time.Now()}}
}

func (b *AreaBuilder) ID(id string) *AreaBuilder            { b.a.ID = id; return b }
func (b *AreaBuilder) Name(n string) *AreaBuilder           { b.a.Name = n; return b }
func (b *AreaBuilder) Organization(id string) *AreaBuilder  { b.a.OrganizationID = id; return b }
func (b *AreaBuilder) Parent(id string) *AreaBuilder        { b.a.ParentAreaID = id; return b }
func (b *AreaBuilder) FolderPath(p string) *AreaBuilder     { b.a.FolderPath = p; return b }
func (b *AreaBuilder) Active(active bool) *AreaBuilder      { b.a.IsActive = active; return b }
func (b *AreaBuilder) Build() *Area                         { return b.a }

// FunctionBuilder builds a ManagementFunction.
type FunctionBuilder struct {
	f *ManagementFunction
}

func NewFunctionBuilder() *FunctionBuilder {
	return &FunctionBuilder{f: &ManagementFunction{IsActive: true, CreatedAt: time.Now()}}
}

func (b *FunctionBuilder) ID(id string) *FunctionBuilder           { b.f.ID = id; return b }
func (b *FunctionBuilder) Name(n string) *FunctionBuilder          { b.f.Name = n; return b }
func (b *FunctionBuilder) Organization(id string) *FunctionBuilder { b.f.OrganizationID = id; return b }
func (b *FunctionBuilder) Permissions(perms ...string) *FunctionBuilder {
	b.f.Permissions = append(b.f.Permissions, perms...)
	return b
}
func (b *FunctionBuilder) Active(active bool) *FunctionBuilder { b.f.IsActive = active; return b }
func (b *FunctionBuilder) Build() *ManagementFunction          { return b.f }
