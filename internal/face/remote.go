package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"attendance-service/internal/config"
	"attendance-service/internal/util"

	"go.uber.org/zap"
)

// RemoteBackend calls an external face-recognition service over HTTP.
// The service owns detection and embedding; this client only transports
// images and returns the raw comparison.
type RemoteBackend struct {
	endpoint string
	client   *http.Client
}

type compareRequest struct {
	ReferenceImage string `json:"reference_image"`
	ProbeImage     string `json:"probe_image"`
}

type compareResponse struct {
	EmbeddingDistance float64 `json:"embedding_distance"`
	ProbeFaceCount    int     `json:"probe_face_count"`
	Error             string  `json:"error,omitempty"`
}

func NewRemoteBackend(cfg *config.Config) *RemoteBackend {
	timeout := time.Duration(cfg.Face.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	util.Info("Remote face backend initialized",
		zap.String("endpoint", cfg.Face.Endpoint),
		zap.Duration("timeout", timeout))

	return &RemoteBackend{
		endpoint: cfg.Face.Endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *RemoteBackend) Compare(ctx context.Context, reference, probe []byte) (Comparison, error) {
	payload, err := json.Marshal(compareRequest{
		ReferenceImage: base64.StdEncoding.EncodeToString(reference),
		ProbeImage:     base64.StdEncoding.EncodeToString(probe),
	})
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to encode compare request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/v1/compare", bytes.NewReader(payload))
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to build compare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Comparison{}, fmt.Errorf("face backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to read face backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Comparison{}, fmt.Errorf("face backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed compareResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Comparison{}, fmt.Errorf("failed to decode face backend response: %w", err)
	}
	if parsed.Error != "" {
		return Comparison{}, fmt.Errorf("face backend error: %s", parsed.Error)
	}

	return Comparison{
		EmbeddingDistance: parsed.EmbeddingDistance,
		ProbeFaceCount:    parsed.ProbeFaceCount,
	}, nil
}

// DisabledBackend is the no-op implementation used when biometric matching
// is switched off. Callers requesting face verification get a hard error
// rather than a silent pass.
type DisabledBackend struct{}

func NewDisabledBackend() *DisabledBackend {
	return &DisabledBackend{}
}

func (b *DisabledBackend) Compare(ctx context.Context, reference, probe []byte) (Comparison, error) {
	return Comparison{}, ErrBackendDisabled
}

// BackendFromConfig selects the backend implementation once at startup.
func BackendFromConfig(cfg *config.Config) Backend {
	switch cfg.Face.Backend {
	case "remote":
		return NewRemoteBackend(cfg)
	default:
		util.Warn("face matching disabled by configuration",
			zap.String("backend", cfg.Face.Backend))
		return NewDisabledBackend()
	}
}
