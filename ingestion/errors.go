package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/sibyl/core"
)

var (
	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrNoParser is returned for an accepted file type without a registered parser.
	ErrNoParser = errors.New("no parser registered for file type")

	// ErrCorruptFile is returned when file bytes cannot be decoded as text.
	ErrCorruptFile = errors.New("file is corrupted or not a text document")

	// ErrEmptyDocument is returned when a parsed document has no text.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrBatchNotFound is returned for unknown or expired batch ids.
	ErrBatchNotFound = errors.New("batch not found")
)

// Per-file error codes.
const (
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileCorrupted       = "FILE_CORRUPTED"
	CodeEmptyDocument       = "EMPTY_DOCUMENT"
	CodeProcessingFailed    = "PROCESSING_FAILED"
)

// FileError is the failure of one file of a batch. It never aborts the
// rest of the batch.
type FileError struct {
	Filename  string
	Type      string
	Code      string
	Retryable bool
	Err       error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Filename, e.Code, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// fileError classifies err for filename.
func fileError(filename string, err error) *FileError {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe
	}
	fe = &FileError{Filename: filename, Err: err}
	switch {
	case errors.Is(err, ErrNoParser):
		fe.Type, fe.Code = "unsupported_file_type", CodeUnsupportedFileType
	case errors.Is(err, ErrCorruptFile):
		fe.Type, fe.Code = "parse_error", CodeFileCorrupted
	case errors.Is(err, ErrEmptyDocument):
		fe.Type, fe.Code = "empty_document", CodeEmptyDocument
	default:
		fe.Type, fe.Code, fe.Retryable = "processing_error", CodeProcessingFailed, true
	}
	return fe
}

// fail fills the failure fields of outcome from err.
func fail(outcome *core.IngestionOutcome, err error) {
	fe := fileError(outcome.Filename, err)
	outcome.Status = core.OutcomeFailed
	outcome.ErrorType = fe.Type
	outcome.ErrorCode = fe.Code
	outcome.Error = fe.Err.Error()
	outcome.RetryPossible = fe.Retryable
}
