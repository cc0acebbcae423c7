package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/ingestion"
)

// maxFieldSize bounds non-file form values.
const maxFieldSize = 4 << 10

type submittedBody struct {
	BatchID   string `json:"batch_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// ingest handles POST /api/v1/ingest.
//
// The body is multipart/form-data with one or more "files" parts and optional
// option fields named after ingestion.Options. With ?async=true the batch runs
// in the background and 202 is returned with the batch id.
func (h *handler) ingest(w http.ResponseWriter, r *http.Request) {
	async, err := queryBool(r, "async")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pipeline := h.backend.Pipeline()
	limit := int64(pipeline.MaxFiles())*pipeline.MaxFileSize() + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	files, opts, err := readUpload(r, pipeline.MaxFiles(), pipeline.MaxFileSize())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if async {
		id, err := h.backend.Submit(r.Context(), files, opts)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, submittedBody{
			BatchID:   id,
			Status:    string(ingestion.BatchProcessing),
			StatusURL: "/api/v1/ingest/status/" + id,
		})
		return
	}

	batch, err := h.backend.Ingest(r.Context(), files, opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

type formatBody struct {
	Extension string `json:"extension"`
	// Parsed is false for extensions accepted for an external parser that is
	// not installed; such files fail individually.
	Parsed       bool  `json:"parsed"`
	MaxSizeBytes int64 `json:"max_size_bytes"`
}

type formatsBody struct {
	SupportedFormats []formatBody `json:"supported_formats"`
	MaxFilesPerBatch int          `json:"max_files_per_batch"`
	MaxFileSizeBytes int64        `json:"max_file_size_bytes"`
}

// supportedFormats handles GET /api/v1/ingest/supported-formats.
func (h *handler) supportedFormats(w http.ResponseWriter, r *http.Request) {
	pipeline := h.backend.Pipeline()
	parsers := pipeline.Parsers()
	body := formatsBody{
		SupportedFormats: []formatBody{},
		MaxFilesPerBatch: pipeline.MaxFiles(),
		MaxFileSizeBytes: pipeline.MaxFileSize(),
	}
	for _, ext := range parsers.Extensions() {
		_, err := parsers.Lookup("file" + ext)
		body.SupportedFormats = append(body.SupportedFormats, formatBody{
			Extension:    ext,
			Parsed:       err == nil,
			MaxSizeBytes: pipeline.MaxFileSize(),
		})
	}
	writeJSON(w, http.StatusOK, body)
}

// readUpload streams the multipart body. A file larger than maxSize is rejected
// as soon as the limit is crossed.
func readUpload(r *http.Request, maxFiles int, maxSize int64) ([]ingestion.File, ingestion.Options, error) {
	opts := ingestion.DefaultOptions()
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, opts, core.NewValidationError("body", "expected multipart/form-data")
	}

	var files []ingestion.File
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, opts, bodyError(err)
		}

		if part.FileName() != "" {
			if len(files) == maxFiles {
				return nil, opts, core.NewValidationError("files", fmt.Sprintf("at most %d files per batch", maxFiles))
			}
			name := filepath.Base(part.FileName())
			data, err := io.ReadAll(io.LimitReader(part, maxSize+1))
			if err != nil {
				return nil, opts, bodyError(err)
			}
			if int64(len(data)) > maxSize {
				return nil, opts, &core.ValidationError{
					Field:  "files",
					Reason: fmt.Sprintf("%s exceeds %d bytes", name, maxSize),
					Code:   CodeFileTooLarge,
				}
			}
			files = append(files, ingestion.File{Name: name, Data: data})
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
		if err != nil {
			return nil, opts, bodyError(err)
		}
		if err := setOption(&opts, part.FormName(), strings.TrimSpace(string(value))); err != nil {
			return nil, opts, err
		}
	}
	return files, opts, nil
}

func setOption(opts *ingestion.Options, field, value string) error {
	var err error
	switch field {
	case "chunk_size":
		opts.ChunkSize, err = strconv.Atoi(value)
	case "chunk_overlap":
		opts.ChunkOverlap, err = strconv.Atoi(value)
	case "extract_entities":
		opts.ExtractEntities, err = strconv.ParseBool(value)
	case "create_embeddings":
		opts.CreateEmbeddings, err = strconv.ParseBool(value)
	case "overwrite_existing":
		opts.OverwriteExisting, err = strconv.ParseBool(value)
	case "language":
		opts.Language = value
	case "batch_id":
		opts.BatchID = value
	default:
		return core.NewValidationError(field, "unknown field")
	}
	if err != nil {
		return core.NewValidationError(field, fmt.Sprintf("invalid value %q", value))
	}
	return nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, core.NewValidationError(name, fmt.Sprintf("invalid value %q", v))
	}
	return b, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &core.ValidationError{Field: "body", Reason: "request body too large", Code: CodeFileTooLarge}
	}
	return core.NewValidationError("body", "malformed multipart body")
}
