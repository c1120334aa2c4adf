package subproc

import (
	"encoding/json"
	"errors"

	"aidispatch/internal/backend"
)

// Commands understood by the worker.
const (
	cmdEmbed  = "embed"
	cmdPing   = "ping"
	cmdStatus = "status"
)

// request is one line written to the worker's stdin.
type request struct {
	ID      uint64              `json:"id"`
	Command string              `json:"command"`
	Text    *backend.EmbedInput `json:"text,omitempty"`
	Model   string              `json:"model,omitempty"`
}

// response is one line read from the worker's stdout. ID is only present when
// the worker echoes request ids.
type response struct {
	ID         *uint64         `json:"id,omitempty"`
	Success    bool            `json:"success"`
	Embeddings json.RawMessage `json:"embeddings,omitempty"`
	Dimensions int             `json:"dimensions,omitempty"`
	Model      string          `json:"model,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// vectors decodes Embeddings, accepting both number[] and number[][].
func (r response) vectors() ([][]float32, error) {
	if len(r.Embeddings) == 0 {
		return nil, errors.New("reply carries no embeddings")
	}
	var many [][]float32
	if err := json.Unmarshal(r.Embeddings, &many); err == nil {
		return many, nil
	}
	var one []float32
	if err := json.Unmarshal(r.Embeddings, &one); err != nil {
		return nil, err
	}
	return [][]float32{one}, nil
}
