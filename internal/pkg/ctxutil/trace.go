package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies the request and the operator behind it. Actor is the
// identity recorded on audit events for parameter edits and run approvals.
type TraceData struct {
	TraceID   string
	RequestID string
	Actor     string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}
