package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry pairs a private registry with the store collectors registered
// on it. CLI runs are short lived, so instead of serving /metrics they dump
// the registry in the node-exporter textfile format on exit.
type Registry struct {
	*prometheus.Registry
	Metrics *Metrics
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{Registry: reg, Metrics: NewMetrics(reg)}
}

// WriteTextfile atomically replaces path with the current values.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
