package embedder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
)

// FeatureClient — клиент внутреннего feature-сервиса, который считает
// visual/color/texture/application эмбеддинги. Протокол — JSON over HTTP.
type FeatureClient struct {
	addr   string
	client *http.Client
}

func NewFeatureClient(addr string, timeout time.Duration) *FeatureClient {
	return &FeatureClient{
		addr: addr,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type vectorizeRequest struct {
	ModelKey string   `json:"model_key"`
	Text     string   `json:"text,omitempty"`
	ImageB64 string   `json:"image_b64,omitempty"`
	Colors   []string `json:"colors,omitempty"`
	Label    string   `json:"label,omitempty"`
}

type vectorizeResponse struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	Confidence   *float64  `json:"confidence,omitempty"`
}

// Embed запрашивает вектор у feature-сервиса по ключу модели.
func (c *FeatureClient) Embed(ctx context.Context, modelKey string, input *usecase.EmbedInput) (*usecase.EmbedResult, error) {
	reqBody := vectorizeRequest{
		ModelKey: modelKey,
		Text:     input.Text,
		Colors:   input.Colors,
		Label:    input.Label,
	}
	if len(input.ImageData) > 0 {
		reqBody.ImageB64 = base64.StdEncoding.EncodeToString(input.ImageData)
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: feature service: %v", e.ErrProviderValidation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/v1/vectorize", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: feature service: %v", e.ErrProviderValidation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: feature service: %v", e.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: feature service: status %d: %s", e.ErrProviderTransient, resp.StatusCode, body)
		}

		return nil, fmt.Errorf("%w: feature service: status %d: %s", e.ErrProviderValidation, resp.StatusCode, body)
	}

	var out vectorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: feature service: %v", e.ErrProviderTransient, err)
	}

	return usecase.NewEmbedResult(out.Vector, out.ModelVersion, out.Confidence), nil
}
