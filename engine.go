package authz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/axdbertuol/authz/logger"
)

// Stores bundles the collaborator contracts the engine needs. Audit is
// optional; everything else is required.
type Stores struct {
	Permissions PermissionStore
	Roles       RoleStore
	Memberships RoleMembershipStore
	Policies    PolicyStore
	Resources   ResourceStore
	Areas       AreaStore
	Functions   FunctionStore
	Assignments AssignmentStore
	Audit       AuditSink
}

// Engine is the authorization decision engine. Evaluation is pure
// computation over store snapshots and is safe to call concurrently; the
// only internal goroutine is the audit worker.
type Engine struct {
	stores Stores

	rbac *RBACResolver
	abac *ABACEngine
	docs *DocumentAccessService

	logger      logger.Logger
	traceIDFunc TraceIDFunc

	decisionCache *ristretto.Cache
	decisionTTL   time.Duration

	auditCh      chan *AuditEntry
	auditDropped atomic.Uint64
	auditWG      sync.WaitGroup
	stopCh       chan struct{}
	stopOnce     sync.Once

	batchWorkers    int
	auditBufferSize int
	idCounter       atomic.Uint64
}

type EngineOption func(*Engine) error

// WithDecisionCache enables the ristretto decision cache. Cached decisions
// expire after ttl and are cleared by administrative writes.
func WithDecisionCache(ttl time.Duration, maxEntries int64) EngineOption {
	return func(e *Engine) error {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: maxEntries * 10,
			MaxCost:     maxEntries,
			BufferItems: 64,
		})
		if err != nil {
			return fmt.Errorf("decision cache: %w", err)
		}
		e.decisionCache = cache
		e.decisionTTL = ttl
		return nil
	}
}

// WithAuditBuffer sets the audit channel capacity. Entries beyond a full
// buffer are dropped and counted, never blocking a request.
func WithAuditBuffer(size int) EngineOption {
	return func(e *Engine) error {
		if size <= 0 {
			return fmt.Errorf("audit buffer size must be positive, got %d", size)
		}
		e.auditBufferSize = size
		return nil
	}
}

// WithBatchWorkers bounds the concurrency of batch evaluations.
func WithBatchWorkers(n int) EngineOption {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("batch worker count must be positive, got %d", n)
		}
		e.batchWorkers = n
		return nil
	}
}

func NewEngine(s Stores, opts ...EngineOption) (*Engine, error) {
	if s.Permissions == nil || s.Roles == nil || s.Memberships == nil || s.Policies == nil ||
		s.Resources == nil || s.Areas == nil || s.Functions == nil || s.Assignments == nil {
		return nil, fmt.Errorf("all stores except audit are required")
	}
	e := &Engine{
		stores:          s,
		logger:          logger.NewPhusluLogger(),
		stopCh:          make(chan struct{}),
		batchWorkers:    4,
		auditBufferSize: 1024,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.traceIDFunc == nil {
		e.traceIDFunc = e.nextTraceID
	}
	e.rbac = NewRBACResolver(s.Roles, s.Memberships, s.Permissions, e.logger)
	e.abac = NewABACEngine(s.Policies, s.Resources, e.logger)
	e.docs = NewDocumentAccessService(s.Areas, s.Functions, s.Assignments, s.Policies, e.logger)

	if s.Audit != nil {
		e.auditCh = make(chan *AuditEntry, e.auditBufferSize)
		e.auditWG.Add(1)
		go e.auditWorker()
	}
	return e, nil
}

// Close stops the audit worker and releases the decision cache. Pending
// audit entries are drained first.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	e.auditWG.Wait()
	if e.decisionCache != nil {
		e.decisionCache.Close()
	}
}

func (e *Engine) nextTraceID() string {
	return fmt.Sprintf("%x-%x", time.Now().UnixNano(), e.idCounter.Add(1))
}

// Authorize produces the final decision for one request. It never panics
// out and never returns an error: every fault becomes a Deny carrying an
// authorization_error reason, and the reason trail is always non-empty.
func (e *Engine) Authorize(ctx context.Context, ac *AuthorizationContext) *AuthorizationDecision {
	start := time.Now()
	if ac == nil {
		return finalize(Deny(Reason(ReasonAuthorizationError, "missing authorization context", nil)), start)
	}
	if dec, ok := e.cachedDecision(ac); ok {
		return dec
	}

	// RBAC and ABAC are independent until combined, so evaluate them in
	// parallel when the request targets a concrete resource.
	var abacDec *AuthorizationDecision
	var wg sync.WaitGroup
	if ac.ResourceID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			abacDec = e.safeEvaluate("abac", func() *AuthorizationDecision {
				return e.abac.EvaluatePolicies(ctx, ac)
			})
		}()
	}
	rbacDec := e.safeEvaluate("rbac", func() *AuthorizationDecision {
		return e.rbac.Authorize(ctx, ac)
	})
	wg.Wait()

	final := finalize(CombineDecisions(rbacDec, abacDec), start)
	e.storeDecision(ac, final)
	e.emitAudit(ac, final)
	return final
}

func finalize(d *AuthorizationDecision, start time.Time) *AuthorizationDecision {
	d.EvaluationTime = time.Since(start)
	d.Timestamp = time.Now()
	return d
}

// safeEvaluate converts an evaluator panic into a fail-closed Deny.
func (e *Engine) safeEvaluate(stage string, fn func() *AuthorizationDecision) (dec *AuthorizationDecision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation panic", "stage", stage, "panic", fmt.Sprint(r))
			dec = Deny(Reason(ReasonAuthorizationError, fmt.Sprintf("%s evaluation failed", stage), nil))
		}
	}()
	dec = fn()
	if dec == nil {
		dec = Deny(Reason(ReasonAuthorizationError, fmt.Sprintf("%s evaluation produced no decision", stage), nil))
	}
	return dec
}

// Decision cache. Requests carrying caller-supplied user or environment
// attributes are never cached: the key cannot capture them.

func (e *Engine) cacheKey(ac *AuthorizationContext) string {
	return ac.UserID + "|" + ac.OrganizationID + "|" + ac.ResourceType + "|" + ac.ResourceID + "|" + ac.Action
}

func (e *Engine) cacheable(ac *AuthorizationContext) bool {
	return e.decisionCache != nil && len(ac.UserAttributes) == 0 && len(ac.EnvironmentAttributes) == 0
}

func (e *Engine) cachedDecision(ac *AuthorizationContext) (*AuthorizationDecision, bool) {
	if !e.cacheable(ac) {
		return nil, false
	}
	v, ok := e.decisionCache.Get(e.cacheKey(ac))
	if !ok {
		return nil, false
	}
	cached, ok := v.(*AuthorizationDecision)
	if !ok {
		return nil, false
	}
	// Hand out a marked copy with a fresh timestamp so the audit trail
	// reflects when this answer was served, not when it was computed.
	dec := *cached
	dec.Cached = true
	dec.Timestamp = time.Now()
	return &dec, true
}

func (e *Engine) storeDecision(ac *AuthorizationContext, dec *AuthorizationDecision) {
	if !e.cacheable(ac) {
		return
	}
	// Denies born from store or evaluator faults are transient; caching
	// them would pin the outage for the full TTL.
	if dec.HasReason(ReasonAuthorizationError) {
		return
	}
	e.decisionCache.SetWithTTL(e.cacheKey(ac), dec, 1, e.decisionTTL)
}

// InvalidateDecisions clears the whole decision cache. Administrative
// writes call it so stale grants never outlive a mutation.
func (e *Engine) InvalidateDecisions() {
	if e.decisionCache != nil {
		e.decisionCache.Clear()
	}
}

// Audit pipeline.

func (e *Engine) emitAudit(ac *AuthorizationContext, dec *AuthorizationDecision) {
	if e.auditCh == nil {
		return
	}
	entry := &AuditEntry{
		ID:             fmt.Sprintf("dec-%x", e.idCounter.Add(1)),
		Timestamp:      dec.Timestamp,
		TraceID:        e.traceIDFunc(),
		UserID:         ac.UserID,
		OrganizationID: ac.OrganizationID,
		ResourceType:   ac.ResourceType,
		ResourceID:     ac.ResourceID,
		Action:         ac.Action,
		Result:         dec.Result,
		Reasons:        dec.Reasons,
		EvaluationTime: dec.EvaluationTime,
	}
	select {
	case e.auditCh <- entry:
	default:
		e.auditDropped.Add(1)
	}
}

func (e *Engine) auditWorker() {
	defer e.auditWG.Done()
	for {
		select {
		case entry := <-e.auditCh:
			e.recordAudit(entry)
		case <-e.stopCh:
			for {
				select {
				case entry := <-e.auditCh:
					e.recordAudit(entry)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) recordAudit(entry *AuditEntry) {
	if err := e.stores.Audit.RecordDecision(context.Background(), entry); err != nil {
		e.logger.Error("audit record failed", "entry_id", entry.ID, "error", err.Error())
		return
	}
	e.logger.Info("authorization decision",
		"trace_id", entry.TraceID,
		"user_id", entry.UserID,
		"organization_id", entry.OrganizationID,
		"resource_type", entry.ResourceType,
		"resource_id", entry.ResourceID,
		"action", entry.Action,
		"result", string(entry.Result),
	)
}

// AuditDropped reports how many audit entries were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 { return e.auditDropped.Load() }

// Public query surface.

// CanUserAccessResource is the boolean convenience form of Authorize.
func (e *Engine) CanUserAccessResource(ctx context.Context, userID, resourceType, resourceID, action, orgID string) bool {
	ac := NewAuthorizationContext(userID, orgID, resourceType, action)
	ac.ResourceID = resourceID
	return e.Authorize(ctx, ac).IsAllowed()
}

// GetUserPermissions resolves the user's effective permission names,
// role inheritance included.
func (e *Engine) GetUserPermissions(ctx context.Context, userID, orgID string) ([]string, error) {
	return e.rbac.UserPermissions(ctx, userID, orgID)
}

// CheckMultiplePermissions evaluates several actions against one resource,
// bounded by the batch worker count.
func (e *Engine) CheckMultiplePermissions(ctx context.Context, userID, resourceType string, actions []string, orgID, resourceID string) map[string]bool {
	out := make(map[string]bool, len(actions))
	var mu sync.Mutex
	sem := make(chan struct{}, e.batchWorkers)
	var wg sync.WaitGroup
	for _, action := range actions {
		wg.Add(1)
		sem <- struct{}{}
		go func(action string) {
			defer wg.Done()
			defer func() { <-sem }()
			ac := NewAuthorizationContext(userID, orgID, resourceType, action)
			ac.ResourceID = resourceID
			allowed := e.Authorize(ctx, ac).IsAllowed()
			mu.Lock()
			out[action] = allowed
			mu.Unlock()
		}(action)
	}
	wg.Wait()
	return out
}

// CanAccessFolder delegates to the document access service.
func (e *Engine) CanAccessFolder(ctx context.Context, userID, orgID, folderPath, action string) (bool, string) {
	return e.docs.CanAccessFolder(ctx, userID, orgID, folderPath, action)
}

// CanUserAccessDocument adds the deny-policy gate on top of the folder
// checks.
func (e *Engine) CanUserAccessDocument(ctx context.Context, userID, orgID, path, action string) (bool, string) {
	return e.docs.CanUserAccessDocument(ctx, userID, orgID, path, action)
}

// GetAccessiblePaths lists the folder paths, with recursive markers,
// reachable from the user's assignment.
func (e *Engine) GetAccessiblePaths(ctx context.Context, userID, orgID string) ([]string, error) {
	return e.docs.AccessiblePaths(ctx, userID, orgID)
}

// GetAccessibleResources filters the organization's resources of the given
// type down to those the context's user may exercise permissionName on.
func (e *Engine) GetAccessibleResources(ctx context.Context, ac *AuthorizationContext, permissionName, resourceType string) ([]string, error) {
	_, action := SplitPermissionName(permissionName)
	if action == "" {
		return nil, fmt.Errorf("permission name %q must be resource_type:action", permissionName)
	}
	resources, err := e.stores.Resources.ListResources(ctx, ac.OrganizationID, resourceType)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	ids := make([]string, 0, len(resources))
	var mu sync.Mutex
	sem := make(chan struct{}, e.batchWorkers)
	var wg sync.WaitGroup
	for _, res := range resources {
		wg.Add(1)
		sem <- struct{}{}
		go func(res *Resource) {
			defer wg.Done()
			defer func() { <-sem }()
			probe := ac.WithAction(action).WithResourceID(res.ID)
			probe.ResourceType = resourceType
			if e.Authorize(ctx, probe).IsAllowed() {
				mu.Lock()
				ids = append(ids, res.ID)
				mu.Unlock()
			}
		}(res)
	}
	wg.Wait()
	sort.Strings(ids)
	return ids, nil
}

// GetDecisionLog reads the audit trail back when the configured sink
// supports queries.
func (e *Engine) GetDecisionLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	store, ok := e.stores.Audit.(AuditStore)
	if !ok {
		return nil, fmt.Errorf("configured audit sink does not support queries")
	}
	return store.GetDecisionLog(ctx, filter)
}
