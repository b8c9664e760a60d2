package health

import "context"

// IndexReadiness reports whether a catalog index is being served.
type IndexReadiness interface {
	Ready() bool
}

// Pinger checks backing store availability (cache, catalog database).
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks embedding or completion provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
