package generation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels_OpenAICompatible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-local", r.Header.Get("Authorization"))
		w.Write([]byte(`{"object":"list","data":[{"id":"mistral-7b"},{"id":"llama-3-8b"},{"id":"mistral-7b"}]}`))
	}))
	defer srv.Close()

	models, err := ListModels(context.Background(), srv.Client(), VLLMBackend{BaseURL: srv.URL + "/v1/", APIKey: "sk-local"})
	require.NoError(t, err)
	assert.Equal(t, []string{"llama-3-8b", "mistral-7b"}, models)
}

func TestListModels_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"models":[{"name":"qwen2.5:3b","size":1929912432},{"name":"llama3.1:8b"}]}`))
	}))
	defer srv.Close()

	models, err := ListModels(context.Background(), nil, OllamaBackend{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "qwen2.5:3b"}, models)
}

func TestListModels_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/denied/models":
			http.Error(w, "invalid api key", http.StatusUnauthorized)
		default:
			w.Write([]byte("<html>not json</html>"))
		}
	}))
	defer srv.Close()

	_, err := ListModels(context.Background(), nil, VLLMBackend{BaseURL: srv.URL + "/denied"})
	assert.ErrorIs(t, err, ErrModelList)
	assert.Contains(t, err.Error(), "401")

	_, err = ListModels(context.Background(), nil, VLLMBackend{BaseURL: srv.URL + "/html"})
	assert.ErrorIs(t, err, ErrModelList)

	_, err = ListModels(context.Background(), nil, GeminiBackend{APIKey: "key"})
	assert.ErrorIs(t, err, ErrModelList)

	srv.Close()
	_, err = ListModels(context.Background(), nil, OllamaBackend{BaseURL: srv.URL})
	assert.ErrorIs(t, err, ErrModelList)
}

func TestModelQuery_Backend(t *testing.T) {
	b, err := ModelQuery{BaseURL: "http://gpu-box:8000/v1"}.Backend()
	require.NoError(t, err)
	assert.Equal(t, VLLMBackend{BaseURL: "http://gpu-box:8000/v1"}, b, "kind defaults to any OpenAI-compatible server")

	b, err = ModelQuery{Kind: "Ollama"}.Backend()
	require.NoError(t, err)
	assert.Equal(t, OllamaBackend{}, b)

	_, err = ModelQuery{}.Backend()
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = ModelQuery{Kind: "bedrock", BaseURL: "http://x"}.Backend()
	assert.ErrorIs(t, err, ErrUnknownKind)
}
