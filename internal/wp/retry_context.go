package wp

import "context"

type retryCtxKey struct{}

// RetryCounters holds per-item retry attribution the transport updates.
type RetryCounters struct {
	Total     int64
	Status429 int64
	Status5xx int64
	Net       int64
}

// WithRetryCounters attaches counters to the context so the transport can
// attribute retries to the entity currently in flight.
func WithRetryCounters(ctx context.Context, rc *RetryCounters) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, retryCtxKey{}, rc)
}

func getRetryCounters(ctx context.Context) *RetryCounters {
	if ctx == nil {
		return nil
	}
	if rc, ok := ctx.Value(retryCtxKey{}).(*RetryCounters); ok {
		return rc
	}
	return nil
}
