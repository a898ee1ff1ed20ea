package embeddings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbedServer fakes the embedding backend: pooled requests get one
// vector per text, pooling=none requests get a small matrix per text
func newEmbedServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}

		var req TokenEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Pooling == "none" {
			resp := TokenEmbedResponse{Success: true, Model: req.Model, Count: len(req.Texts)}
			for range req.Texts {
				resp.TokenEmbeddings = append(resp.TokenEmbeddings, [][]float32{{1, 0}, {0, 1}})
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
			return
		}

		resp := EmbedResponse{Success: true, Model: req.Model, Count: len(req.Texts)}
		for range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float32{0.5, 0.5})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNewValidatesEndpoint(t *testing.T) {
	t.Run("reachable endpoint", func(t *testing.T) {
		server := newEmbedServer(t, nil)
		defer server.Close()
		t.Setenv("EMBEDDING_ENDPOINT", server.URL)

		svc, err := New("test-model")
		require.NoError(t, err)
		assert.Equal(t, "test-model", svc.Model())
		assert.Equal(t, DefaultBatchSize, svc.GetBatchSize())
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		t.Setenv("EMBEDDING_ENDPOINT", "http://127.0.0.1:1/nope")

		_, err := New("test-model")
		require.Error(t, err)
	})

	t.Run("no endpoint skips validation", func(t *testing.T) {
		t.Setenv("EMBEDDING_ENDPOINT", "")

		svc, err := New("test-model")
		require.NoError(t, err)
		assert.Equal(t, "", svc.baseURL)
	})
}

func TestEmbedTexts(t *testing.T) {
	server := newEmbedServer(t, nil)
	defer server.Close()
	t.Setenv("EMBEDDING_ENDPOINT", server.URL)

	svc, err := New("test-model")
	require.NoError(t, err)

	t.Run("empty input", func(t *testing.T) {
		out, err := svc.EmbedTexts(nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("returns one vector per text", func(t *testing.T) {
		out, err := svc.EmbedTexts([]string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, []float32{0.5, 0.5}, out[0])
	})
}

func TestEmbedTextsBatching(t *testing.T) {
	var calls int64
	server := newEmbedServer(t, &calls)
	defer server.Close()
	t.Setenv("EMBEDDING_ENDPOINT", server.URL)

	svc, err := NewWithBatchSize("test-model", 2)
	require.NoError(t, err)
	calls = 0 // ignore the validation request

	texts := []string{"a", "b", "c", "d", "e"}
	out, err := svc.EmbedTexts(texts)
	require.NoError(t, err)
	require.Len(t, out, 5)

	// 5 texts with batch size 2 -> 3 requests
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestEmbedTokens(t *testing.T) {
	server := newEmbedServer(t, nil)
	defer server.Close()
	t.Setenv("EMBEDDING_ENDPOINT", server.URL)

	svc, err := New("test-model")
	require.NoError(t, err)

	out, err := svc.EmbedTokens([]string{"hello"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0], 2)
	assert.Equal(t, []float32{1, 0}, out[0][0])
}

func TestEmbedTokensRequiresEndpoint(t *testing.T) {
	t.Setenv("EMBEDDING_ENDPOINT", "")

	svc, err := New("test-model")
	require.NoError(t, err)

	_, err = svc.EmbedTokens([]string{"hello"})
	require.Error(t, err)
}

func TestEmbedTextsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()
	t.Setenv("EMBEDDING_ENDPOINT", "")

	svc, err := New("test-model")
	require.NoError(t, err)
	svc.SetBaseURL(server.URL)
	svc.retryDelay = 0

	_, err = svc.EmbedTexts([]string{"a"})
	require.Error(t, err)
}

func TestEmbedTextsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := EmbedResponse{Success: true, Embeddings: [][]float32{{1}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()
	t.Setenv("EMBEDDING_ENDPOINT", "")

	svc, err := New("test-model")
	require.NoError(t, err)
	svc.SetBaseURL(server.URL)
	svc.retryDelay = 0

	_, err = svc.EmbedTexts([]string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")
}
