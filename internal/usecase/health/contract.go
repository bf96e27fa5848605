package health

import "context"

// IndexCounter checks vector index availability. Counting entries exercises
// the full storage path on both index drivers.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

// BackendChecker checks inference backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
