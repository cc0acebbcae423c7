package sibyl

import (
	"context"
	"time"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/generation"
	"github.com/poiesic/sibyl/storage"
	"golang.org/x/sync/errgroup"
)

// Overall health states.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// DefaultProbeTimeout bounds each dependency probe.
const DefaultProbeTimeout = 5 * time.Second

// Component names of a HealthReport.
const (
	componentGraphStore  = "graph_store"
	componentVectorStore = "vector_store"
	componentEmbedder    = "embedding_service"
)

// ComponentHealth is the probe result for one store or service.
type ComponentHealth struct {
	Status  string        `json:"status"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

// HealthReport summarizes the reachability of every dependency.
type HealthReport struct {
	Status          string                      `json:"status"`
	Timestamp       time.Time                   `json:"timestamp"`
	Uptime          float64                     `json:"uptime_seconds"`
	Components      map[string]ComponentHealth  `json:"components"`
	Providers       []generation.ProviderHealth `json:"providers"`
	ProviderVersion uint64                      `json:"provider_version"`
}

// Health probes both stores, the embedding service and every enabled provider
// concurrently.
//
// The service is healthy when everything answers, degraded when at least one
// provider and one store answer, and unhealthy otherwise.
func (s *Service) Health(ctx context.Context, timeout time.Duration) *HealthReport {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	snap := s.registry.Current()
	report := &HealthReport{
		Timestamp:       time.Now().UTC(),
		Uptime:          time.Since(s.started).Seconds(),
		ProviderVersion: snap.Version,
	}

	probes := map[string]storage.Pinger{
		componentGraphStore:  s.stores.Graph,
		componentVectorStore: s.stores.Vectors,
	}
	if checker, ok := s.provider.(ai.HealthChecker); ok {
		probes[componentEmbedder] = checker
	}
	results := make(map[string]*ComponentHealth, len(probes))
	var g errgroup.Group
	for name, probe := range probes {
		result := &ComponentHealth{}
		results[name] = result
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			err := probe.Ping(pctx)
			result.Latency = time.Since(start)
			if err != nil {
				result.Status = HealthUnhealthy
				result.Error = err.Error()
			} else {
				result.Status = HealthHealthy
			}
			return nil
		})
	}
	g.Go(func() error {
		report.Providers = generation.CheckHealth(ctx, snap, timeout)
		return nil
	})
	_ = g.Wait()

	report.Components = make(map[string]ComponentHealth, len(results))
	up, storesUp := 0, 0
	for name, r := range results {
		report.Components[name] = *r
		if r.Status != HealthHealthy {
			continue
		}
		up++
		if name != componentEmbedder {
			storesUp++
		}
	}

	enabled, available := 0, 0
	for _, p := range report.Providers {
		if p.Status == generation.StatusDisabled {
			continue
		}
		enabled++
		if p.Available() {
			available++
		}
	}

	switch {
	case up == len(results) && enabled > 0 && available == enabled:
		report.Status = HealthHealthy
	case storesUp > 0 && available > 0:
		report.Status = HealthDegraded
	default:
		report.Status = HealthUnhealthy
	}
	return report
}
