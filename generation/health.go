package generation

import (
	"context"
	"time"

	"github.com/poiesic/sibyl/ai"
	"golang.org/x/sync/errgroup"
)

// Provider health states.
const (
	StatusHealthy    = "healthy"
	StatusUnhealthy  = "unhealthy"
	StatusConfigured = "configured"
	StatusDisabled   = "disabled"
)

// ProviderHealth is the probe result for one provider.
type ProviderHealth struct {
	Name     string        `json:"name"`
	Kind     Kind          `json:"kind"`
	Priority int           `json:"priority"`
	Status   string        `json:"status"`
	Latency  time.Duration `json:"latency_ns"`
	Error    string        `json:"error,omitempty"`
}

// Available reports whether the provider can be expected to answer.
func (h ProviderHealth) Available() bool {
	return h.Status == StatusHealthy || h.Status == StatusConfigured
}

// CheckHealth probes every provider of snap concurrently, each bounded by
// timeout. Results are in priority order.
func CheckHealth(ctx context.Context, snap *Snapshot, timeout time.Duration) []ProviderHealth {
	results := make([]ProviderHealth, len(snap.Providers))
	var g errgroup.Group
	g.SetLimit(4)

	for i, p := range snap.Providers {
		results[i] = ProviderHealth{
			Name:     p.Name,
			Kind:     p.Backend.Kind(),
			Priority: p.Priority,
			Status:   StatusDisabled,
		}
		if !p.Enabled {
			continue
		}
		gen, _ := snap.Generator(p.Name)
		checker, ok := gen.(ai.HealthChecker)
		if !ok {
			results[i].Status = StatusConfigured
			continue
		}

		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := checker.Ping(pctx)
			results[i].Latency = time.Since(start)
			switch {
			case err != nil:
				results[i].Status = StatusUnhealthy
				results[i].Error = err.Error()
			case p.Backend.Kind() == KindGemini:
				results[i].Status = StatusConfigured
			default:
				results[i].Status = StatusHealthy
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
