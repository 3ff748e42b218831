package authz

import "github.com/axdbertuol/authz/logger"

// TraceIDFunc generates a correlation id attached to each audit entry.
// It must be cheap and safe for concurrent calls.
type TraceIDFunc func() string

// WithLogger installs a Logger on the Engine. The default logs through the
// phuslu-style structured logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a custom trace id generator.
func WithTraceIDFunc(f TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}
