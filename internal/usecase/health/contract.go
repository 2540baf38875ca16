package health

import "context"

// IndexPinger checks vector index availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// EncoderChecker checks query encoder availability.
type EncoderChecker interface {
	HealthCheck(ctx context.Context) error
}

// WeightsInfo reports whether calibrated weights are active.
type WeightsInfo interface {
	Calibrated() bool
}
