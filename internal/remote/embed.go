package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"aidispatch/internal/backend"
)

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

var embedFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aidispatch",
		Subsystem: "remote",
		Name:      "embedding_fallback_total",
		Help:      "Embedding requests replayed through the shell fallback after a dropped connection",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(embedFallbackTotal)
}

// GenerateEmbedding embeds each input string with its own request. Batches are
// processed in order; a failed string does not stop the others, and the
// partial result is returned together with a *backend.BatchError.
func (b *Backend) GenerateEmbedding(ctx context.Context, req backend.EmbeddingRequest) (backend.EmbeddingResult, error) {
	if err := b.guard(backend.CapEmbeddings); err != nil {
		return backend.EmbeddingResult{}, err
	}
	texts := req.Input.Values()
	if len(texts) == 0 {
		return backend.EmbeddingResult{}, errors.New("embedding input is empty")
	}
	model := req.Model
	if model == "" {
		_, model, _ = b.models()
	}

	res := backend.EmbeddingResult{Model: model}
	if !req.Input.IsBatch() {
		vec, err := b.embedOne(ctx, model, texts[0])
		if err != nil {
			return backend.EmbeddingResult{}, err
		}
		res.Vector = vec
		res.Dimensions = len(vec)
		return res, nil
	}

	res.Vectors = make([][]float32, len(texts))
	failed := make(map[int]error)
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			// Inputs never attempted fail with the context error; earlier
			// vectors are kept.
			for j := i; j < len(texts); j++ {
				failed[j] = err
			}
			break
		}
		vec, err := b.embedOne(ctx, model, text)
		if err != nil {
			failed[i] = err
			b.log.Warn().Err(err).Int("index", i).Msg("batch embedding failed for one input")
			continue
		}
		res.Vectors[i] = vec
		if res.Dimensions == 0 {
			res.Dimensions = len(vec)
		}
	}
	if len(failed) > 0 {
		return res, &backend.BatchError{Total: len(texts), Failed: failed}
	}
	return res, nil
}

// embedOne posts one string over a fresh connection. When the connection is
// reset or closed mid-request, the same request is replayed once through curl.
func (b *Backend) embedOne(ctx context.Context, model, text string) ([]float32, error) {
	body := embeddingsRequest{Model: model, Prompt: text}
	var out embeddingsResponse
	err := b.doJSON(ctx, callOpts{client: b.embedClient, closeConn: true}, http.MethodPost, "/api/embeddings", body, &out)
	if err == nil {
		return checkVector(out)
	}
	kind, ok := backend.TransportKindOf(err)
	if !ok || (kind != backend.TransportConnReset && kind != backend.TransportEOF) {
		return nil, err
	}
	b.log.Warn().Str("event", "embed_fallback").Str("kind", string(kind)).Err(err).Msg("retrying embedding through shell")
	vec, ferr := b.embedShell(ctx, body)
	if ferr != nil {
		embedFallbackTotal.WithLabelValues("failure").Inc()
		return nil, ferr
	}
	embedFallbackTotal.WithLabelValues("success").Inc()
	return vec, nil
}

func (b *Backend) embedShell(ctx context.Context, body embeddingsRequest) ([]float32, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	out, err := b.run(ctx, b.curlPath,
		"-sS", "--fail",
		"-X", http.MethodPost,
		"-H", "Content-Type: application/json",
		"--data-binary", string(payload),
		b.baseURL()+"/api/embeddings",
	)
	if err != nil {
		return nil, backend.ErrTransport(backend.TransportShell, "curl /api/embeddings", err)
	}
	var resp embeddingsResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, backend.ErrTransport(backend.TransportDecode, "curl /api/embeddings", err)
	}
	return checkVector(resp)
}

func checkVector(r embeddingsResponse) ([]float32, error) {
	if len(r.Embedding) == 0 {
		return nil, backend.ErrTransport(backend.TransportDecode, "POST /api/embeddings", errors.New("empty embedding"))
	}
	return r.Embedding, nil
}
