package stores

import (
	"time"

	"github.com/oarkflow/date"

	"github.com/axdbertuol/authz"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanTime handles the driver-dependent shapes timestamps come back as.
func scanTime(raw any) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sqlNullTimeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func clonePolicy(p *authz.Policy) *authz.Policy {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Conditions = append([]authz.Condition(nil), p.Conditions...)
	return &dup
}

func cloneAttributeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	dup := make(map[string]any, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
