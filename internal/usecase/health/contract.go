package health

import "context"

// Pinger checks store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc probes one component.
type CheckFunc func(ctx context.Context) error

// Component is a named probe. A failing critical component makes the service unhealthy
// and not ready; any other failure only degrades it.
type Component struct {
	Name     string
	Check    CheckFunc
	Critical bool
}

// FromPinger adapts a Pinger.
func FromPinger(name string, p Pinger, critical bool) Component {
	return Component{Name: name, Check: p.Ping, Critical: critical}
}

// FromEmbedding adapts an EmbeddingChecker.
func FromEmbedding(name string, e EmbeddingChecker, critical bool) Component {
	return Component{Name: name, Check: e.HealthCheck, Critical: critical}
}
