package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/axdbertuol/authz"
)

// SQLAuditStore persists authorization decisions in SQL
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) RecordDecision(ctx context.Context, entry *authz.AuditEntry) error {
	reasonsB, _ := json.Marshal(entry.Reasons)
	metaB, _ := json.Marshal(entry.Metadata)
	q := `INSERT INTO decision_log(id, timestamp, trace_id, user_id, organization_id, resource_type, resource_id, action, result, reasons_json, evaluation_ns, metadata_json) VALUES(:id, :timestamp, :trace_id, :user_id, :organization_id, :resource_type, :resource_id, :action, :result, :reasons_json, :evaluation_ns, :metadata_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              entry.ID,
		"timestamp":       entry.Timestamp,
		"trace_id":        entry.TraceID,
		"user_id":         entry.UserID,
		"organization_id": entry.OrganizationID,
		"resource_type":   entry.ResourceType,
		"resource_id":     entry.ResourceID,
		"action":          entry.Action,
		"result":          string(entry.Result),
		"reasons_json":    string(reasonsB),
		"evaluation_ns":   int64(entry.EvaluationTime),
		"metadata_json":   string(metaB),
	})
	return err
}

func (s *SQLAuditStore) GetDecisionLog(ctx context.Context, filter authz.AuditFilter) ([]*authz.AuditEntry, error) {
	q := `SELECT id, timestamp, trace_id, user_id, organization_id, resource_type, resource_id, action, result, reasons_json, evaluation_ns, metadata_json FROM decision_log WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.OrganizationID != "" {
		q += " AND organization_id = :organization_id"
		params["organization_id"] = filter.OrganizationID
	}
	if filter.ResourceID != "" {
		q += " AND resource_id = :resource_id"
		params["resource_id"] = filter.ResourceID
	}
	if filter.Action != "" {
		q += " AND action = :action"
		params["action"] = filter.Action
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	q += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.AuditEntry, 0)
	for r.Next() {
		var id, traceID, userID, orgID, resourceType, resourceID, action, result, reasonsJSON, metaJSON string
		var timestampRaw any
		var evalNS int64
		if err := r.Scan(&id, &timestampRaw, &traceID, &userID, &orgID, &resourceType, &resourceID, &action, &result, &reasonsJSON, &evalNS, &metaJSON); err != nil {
			return nil, err
		}
		entry := &authz.AuditEntry{
			ID:             id,
			Timestamp:      scanTime(timestampRaw),
			TraceID:        traceID,
			UserID:         userID,
			OrganizationID: orgID,
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			Action:         action,
			Result:         authz.DecisionResult(result),
			EvaluationTime: time.Duration(evalNS),
		}
		_ = json.Unmarshal([]byte(reasonsJSON), &entry.Reasons)
		_ = json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		out = append(out, entry)
	}
	return out, nil
}
