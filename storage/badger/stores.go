package badger

// Stores groups the BadgerDB backed stores sharing one backend.
type Stores struct {
	Backend   *Backend
	Graph     *GraphStore
	Vectors   *VectorStore
	Documents *DocumentRepository

	// Checkpoints records progress of resumable maintenance jobs.
	Checkpoints *CheckpointRepository
}

// NewStores creates all stores on top of backend.
func NewStores(backend *Backend) *Stores {
	return &Stores{
		Backend:   backend,
		Graph:     NewGraphStore(backend),
		Vectors:   NewVectorStore(backend),
		Documents: NewDocumentRepository(backend),

		Checkpoints: NewCheckpointRepository(backend),
	}
}

// Close closes the stores, then the backend.
func (s *Stores) Close() error {
	s.Documents.Close()
	s.Vectors.Close()
	s.Graph.Close()
	return s.Backend.Close()
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must Close the result when done.
func NewMemoryStores() (*Stores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewStores(backend), nil
}
