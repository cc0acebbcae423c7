package retrieval

import (
	"time"

	"github.com/poiesic/sibyl/core"
)

// Monitor observes the stages of a retrieval. Callbacks for the two sources may
// arrive concurrently.
type Monitor interface {
	Start(query string)
	CacheHit(query string)
	SourceDone(kind core.SourceKind, evidence []core.Evidence, err error, elapsed time.Duration)
	Finish(kc *core.KnowledgeContext)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                                            {}
func (n *noopMonitor) CacheHit(_ string)                                                         {}
func (n *noopMonitor) SourceDone(_ core.SourceKind, _ []core.Evidence, _ error, _ time.Duration) {}
func (n *noopMonitor) Finish(_ *core.KnowledgeContext)                                           {}
