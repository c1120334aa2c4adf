package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"aidispatch/internal/backend"
)

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"models"`
}

// ClassifyModel guesses a model's kind from its name. It is a heuristic.
func ClassifyModel(name string) backend.ModelKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "embed"):
		return backend.KindEmbed
	case strings.Contains(n, "vision"), strings.Contains(n, "llava"):
		return backend.KindVision
	default:
		return backend.KindChat
	}
}

// ListModels returns the models installed on the server.
func (b *Backend) ListModels(ctx context.Context) ([]backend.ModelInfo, error) {
	var tags tagsResponse
	if err := b.doJSON(ctx, callOpts{}, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	out := make([]backend.ModelInfo, len(tags.Models))
	for i, m := range tags.Models {
		out[i] = backend.ModelInfo{Name: m.Name, Size: m.Size, Downloaded: true, Kind: ClassifyModel(m.Name)}
	}
	return out, nil
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullLine struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DownloadModel pulls name and reports each progress line to onProgress.
func (b *Backend) DownloadModel(ctx context.Context, name string, onProgress func(backend.PullProgress)) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("model name is empty")
	}
	resp, err := b.do(ctx, callOpts{}, http.MethodPost, "/api/pull", pullRequest{Name: name, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var line pullLine
		if err := dec.Decode(&line); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return decodeError("POST /api/pull", err)
		}
		if line.Error != "" {
			return fmt.Errorf("pull %s: %s", name, line.Error)
		}
		if onProgress == nil {
			continue
		}
		p := backend.PullProgress{Model: name, Status: line.Status, Completed: line.Completed, Total: line.Total}
		if line.Total > 0 {
			p.Percent = float64(line.Completed) / float64(line.Total) * 100
		}
		onProgress(p)
	}
	b.log.Info().Str("event", "pulled").Str("model", name).Msg("model download finished")
	return nil
}

// DeleteModel asks the server to remove name and returns the refreshed
// catalog. A rejected delete (for example an unknown model) is logged only.
func (b *Backend) DeleteModel(ctx context.Context, name string) ([]backend.ModelInfo, error) {
	err := b.doJSON(ctx, callOpts{}, http.MethodDelete, "/api/delete", map[string]string{"name": name}, nil)
	if kind, ok := backend.TransportKindOf(err); ok && kind == backend.TransportStatus {
		b.log.Warn().Err(err).Str("model", name).Msg("delete rejected")
	} else if err != nil {
		return nil, err
	}
	return b.ListModels(ctx)
}
