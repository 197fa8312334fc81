package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// MovieCounter reports the size of the scored corpus.
type MovieCounter interface {
	Count(ctx context.Context) (int, error)
}
