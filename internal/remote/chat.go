package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"

	"aidispatch/internal/backend"
)

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []backend.Message `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  *chatOptions      `json:"options,omitempty"`
}

// chatChunk is both a streamed line and the non-streamed reply of /api/chat.
type chatChunk struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (b *Backend) chatBody(req backend.ChatRequest, stream bool) chatRequest {
	model := req.Model
	if model == "" {
		model, _, _ = b.models()
	}
	body := chatRequest{Model: model, Messages: req.Messages, Stream: stream}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &chatOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}
	return body
}

// Chat streams /api/chat. The returned sequence yields each non-empty content
// fragment; malformed lines are skipped. The body is closed when iteration
// ends, including when the caller breaks out early, or when ctx is done for a
// sequence that is never ranged.
func (b *Backend) Chat(ctx context.Context, req backend.ChatRequest) (iter.Seq2[string, error], error) {
	if err := b.guard(backend.CapChat); err != nil {
		return nil, err
	}
	resp, err := b.do(ctx, callOpts{}, http.MethodPost, "/api/chat", b.chatBody(req, true))
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = resp.Body.Close() })
	var consumed atomic.Bool
	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", backend.ErrStreamConsumed)
			return
		}
		defer func() {
			stop()
			_ = resp.Body.Close()
		}()
		r := bufio.NewReader(resp.Body)
		for {
			line, rerr := r.ReadBytes('\n')
			if l := bytes.TrimSpace(line); len(l) > 0 {
				var chunk chatChunk
				if err := json.Unmarshal(l, &chunk); err != nil {
					b.log.Debug().Err(err).Msg("skipping malformed chat line")
				} else {
					if chunk.Error != "" {
						yield("", fmt.Errorf("%s: chat: %s", b.Identity(), chunk.Error))
						return
					}
					if c := chunk.Message.Content; c != "" && !yield(c, nil) {
						return
					}
					if chunk.Done {
						return
					}
				}
			}
			if rerr != nil {
				if errors.Is(rerr, io.EOF) {
					return
				}
				if ctx.Err() != nil {
					yield("", ctx.Err())
					return
				}
				yield("", backend.WrapTransport("read chat stream", rerr))
				return
			}
		}
	}, nil
}

func (b *Backend) ChatComplete(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error) {
	if err := b.guard(backend.CapChat); err != nil {
		return backend.ChatResponse{}, err
	}
	var chunk chatChunk
	if err := b.doJSON(ctx, callOpts{}, http.MethodPost, "/api/chat", b.chatBody(req, false), &chunk); err != nil {
		return backend.ChatResponse{}, err
	}
	if chunk.Error != "" {
		return backend.ChatResponse{}, fmt.Errorf("%s: chat: %s", b.Identity(), chunk.Error)
	}
	out := backend.ChatResponse{
		Content: chunk.Message.Content,
		Model:   chunk.Model,
		Usage:   backend.Usage{PromptTokens: chunk.PromptEvalCount, CompletionTokens: chunk.EvalCount},
	}
	if chunk.Done {
		out.FinishReason = "stop"
	}
	return out, nil
}
