package health

import "context"

// StorePinger checks checkpoint store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker checks the lookup service.
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) error
}
