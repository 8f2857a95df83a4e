package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/materia-tech/vector-backend/internal/cfg"
	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...any)             {}
func (nopLogger) Warnf(format string, args ...any)             {}
func (nopLogger) Errorf(err error, format string, args ...any) {}

func newTestEmbedder(addr string, maxRetries int) *Embedder {
	return New(&cfg.ProviderCfg{
		OpenAIKey:      "test-key",
		FeatureAddr:    addr,
		RequestTimeout: time.Second,
		MaxRetries:     maxRetries,
	}, nopLogger{})
}

func vectorResponse(t *testing.T, w http.ResponseWriter, dim int) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"vector":        make([]float32, dim),
		"model_version": "color-histogram-v2",
		"confidence":    0.8,
	})
	require.NoError(t, err)
}

func TestEmbed_TransientFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		vectorResponse(t, w, 256)
	}))
	defer srv.Close()

	em := newTestEmbedder(srv.URL, 3)

	res, err := em.Embed(context.Background(), domain.TypeColor, &usecase.EmbedInput{Colors: []string{"#fff"}})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, res.Vector, 256)
	assert.Equal(t, "color-histogram-v2", res.ModelVersion)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.8, *res.Confidence, 1e-9)
}

func TestEmbed_ValidationFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	em := newTestEmbedder(srv.URL, 3)

	_, err := em.Embed(context.Background(), domain.TypeColor, &usecase.EmbedInput{Colors: []string{"not-a-color"}})
	require.ErrorIs(t, err, e.ErrProviderValidation)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_RetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	em := newTestEmbedder(srv.URL, 2)

	_, err := em.Embed(context.Background(), domain.TypeTexture, &usecase.EmbedInput{Label: "wood"})
	require.ErrorIs(t, err, e.ErrProviderTransient)
	// Первая попытка + MaxRetries повторов.
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbed_WrongDimensionIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vectorResponse(t, w, 10)
	}))
	defer srv.Close()

	em := newTestEmbedder(srv.URL, 0)

	_, err := em.Embed(context.Background(), domain.TypeColor, &usecase.EmbedInput{Colors: []string{"#fff"}})
	require.ErrorIs(t, err, e.ErrProviderValidation)
}

func TestEmbed_UnknownTypeIsRejected(t *testing.T) {
	em := newTestEmbedder("http://localhost:0", 0)

	_, err := em.Embed(context.Background(), domain.EmbeddingType("audio"), &usecase.EmbedInput{})
	require.ErrorIs(t, err, e.ErrUnknownEmbeddingType)
}

func TestFeatureClient_SendsModelKeyAndPayload(t *testing.T) {
	var got vectorizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/vectorize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		vectorResponse(t, w, 256)
	}))
	defer srv.Close()

	client := NewFeatureClient(srv.URL, time.Second)
	_, err := client.Embed(context.Background(), "color-histogram-v2", &usecase.EmbedInput{Colors: []string{"#fff", "#000"}})
	require.NoError(t, err)

	assert.Equal(t, "color-histogram-v2", got.ModelKey)
	assert.Equal(t, []string{"#fff", "#000"}, got.Colors)
}

func TestMinConfidence(t *testing.T) {
	a, b := 0.3, 0.9
	assert.Equal(t, &a, minConfidence(&a, &b))
	assert.Equal(t, &b, minConfidence(nil, &b))
	assert.Equal(t, &a, minConfidence(&a, nil))
	assert.Nil(t, minConfidence(nil, nil))
}
