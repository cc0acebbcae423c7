package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// ErrModelList is returned when a server's model list cannot be read.
var ErrModelList = errors.New("model list unavailable")

// maxModelList bounds the listing body read from a server.
const maxModelList = 4 << 20

// ModelQuery names a server to ask for its models. When Provider is set the
// configured provider of that name is asked and the other fields are ignored.
// Otherwise Kind defaults to vllm, any OpenAI-compatible server.
type ModelQuery struct {
	Provider string `json:"provider,omitempty"`
	Kind     string `json:"kind,omitempty"`
	BaseURL  string `json:"url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// Backend returns the backend the query describes, without a model.
func (q ModelQuery) Backend() (Backend, error) {
	kind := KindVLLM
	if strings.TrimSpace(q.Kind) != "" {
		var err error
		if kind, err = ParseKind(q.Kind); err != nil {
			return nil, err
		}
	}
	switch kind {
	case KindOpenAI:
		return OpenAIBackend{BaseURL: q.BaseURL, APIKey: q.APIKey}, nil
	case KindOllama:
		return OllamaBackend{BaseURL: q.BaseURL}, nil
	case KindGemini:
		return GeminiBackend{APIKey: q.APIKey}, nil
	}
	if strings.TrimSpace(q.BaseURL) == "" {
		return nil, fmt.Errorf("%w: vllm base_url", ErrMissingField)
	}
	return VLLMBackend{BaseURL: q.BaseURL, APIKey: q.APIKey}, nil
}

// modelsEndpoint returns the listing URL of b and the bearer key it needs.
// OpenAI-compatible servers list under /models, Ollama under /api/tags.
func modelsEndpoint(b Backend) (string, string, error) {
	switch b := b.(type) {
	case OpenAIBackend:
		return strings.TrimSuffix(withDefault(b.BaseURL, defaultOpenAIURL), "/") + "/models", b.APIKey, nil
	case VLLMBackend:
		return strings.TrimSuffix(b.BaseURL, "/") + "/models", b.APIKey, nil
	case OllamaBackend:
		return strings.TrimSuffix(withDefault(b.BaseURL, defaultOllamaURL), "/") + "/api/tags", "", nil
	}
	return "", "", fmt.Errorf("%w: %s has no listing endpoint", ErrModelList, b.Kind())
}

type modelListing struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels asks the server behind b which models it serves and returns
// their ids sorted. Transport failures and non-200 answers wrap ErrModelList.
func ListModels(ctx context.Context, client *http.Client, b Backend) ([]string, error) {
	url, key, err := modelsEndpoint(b)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelList, err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelList, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrModelList, url, resp.Status)
	}

	var listing modelListing
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxModelList)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelList, url, err)
	}
	ids := make([]string, 0, len(listing.Data)+len(listing.Models))
	for _, m := range listing.Data {
		ids = append(ids, m.ID)
	}
	for _, m := range listing.Models {
		ids = append(ids, m.Name)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
