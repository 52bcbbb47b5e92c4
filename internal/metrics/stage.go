package metrics

import "context"

// Lookup stages used as the "stage" label.
const (
	StageDiscovery = "discovery"
	StageBound     = "bound"
	StageHarvest   = "harvest"
	StageVerify    = "verify"
)

type stageKey struct{}

// WithStage tags lookups issued under ctx with a pipeline stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage set by WithStage, or "unknown".
func StageFrom(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok {
		return s
	}
	return "unknown"
}
