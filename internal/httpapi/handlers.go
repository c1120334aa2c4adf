package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"aidispatch/internal/backend"
	"aidispatch/pkg/types"
)

type handlers struct {
	svc Service
}

func (h *handlers) statusResponse(r *http.Request) types.StatusResponse {
	active := h.svc.ActiveIdentity()
	sts := h.svc.AllBackendStatus(r.Context())
	resp := types.StatusResponse{
		Active:         string(active),
		Backends:       make([]types.BackendStatus, len(sts)),
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	for i, st := range sts {
		resp.Backends[i] = toBackendStatus(st, st.Identity == active)
	}
	return resp
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statusResponse(r))
}

func (h *handlers) switchBackend(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Backend) == "" {
		writeJSONError(w, http.StatusBadRequest, "backend is required")
		return
	}
	ctx, cancel := callContext(r, false)
	defer cancel()
	if err := h.svc.SwitchBackend(ctx, backend.Identity(req.Backend)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.statusResponse(r))
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSettings(h.svc.Settings()))
}

// patchSettings stores the patch even when re-selection fails; the error is
// reported with the status it maps to.
func (h *handlers) patchSettings(w http.ResponseWriter, r *http.Request) {
	var req types.SettingsPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := callContext(r, false)
	defer cancel()
	s, err := h.svc.UpdateSettings(ctx, fromSettingsPatch(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettings(s))
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return
	}
	if !req.Stream {
		ctx, cancel := callContext(r, false)
		defer cancel()
		resp, err := h.svc.ChatComplete(ctx, fromChatRequest(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ChatResponse{
			Content:          resp.Content,
			Model:            resp.Model,
			FinishReason:     resp.FinishReason,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		})
		return
	}

	ctx, cancel := callContext(r, true)
	defer cancel()
	seq, err := h.svc.Chat(ctx, fromChatRequest(req))
	if err != nil {
		writeError(w, err)
		return
	}
	nd := newNDJSON(w, r)
	for frag, err := range seq {
		if err != nil {
			nd.abort(r, err)
			return
		}
		if !nd.send(types.ChatChunk{Delta: frag}) {
			IncrementStreamAbort("client")
			return
		}
	}
	nd.send(types.ChatChunk{Done: true})
}

func (h *handlers) embeddings(w http.ResponseWriter, r *http.Request) {
	var req types.EmbeddingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Input) == 0 {
		writeJSONError(w, http.StatusBadRequest, "input is required")
		return
	}
	var in backend.EmbedInput
	if err := json.Unmarshal(req.Input, &in); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Len() == 0 {
		writeJSONError(w, http.StatusBadRequest, "input must not be empty")
		return
	}
	ctx, cancel := callContext(r, false)
	defer cancel()
	res, err := h.svc.GenerateEmbedding(ctx, backend.EmbeddingRequest{Model: req.Model, Input: in})
	resp := types.EmbeddingResponse{
		Embedding:  res.Vector,
		Embeddings: res.Vectors,
		Dimensions: res.Dimensions,
		Model:      res.Model,
	}
	if err != nil {
		// A batch with some vectors is still a useful answer.
		be, ok := backend.AsBatchError(err)
		if !ok || len(be.Failed) >= be.Total {
			writeError(w, err)
			return
		}
		resp.FailedIndexes = be.Indexes()
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) vision(w http.ResponseWriter, r *http.Request) {
	var req types.VisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Image == "" {
		writeJSONError(w, http.StatusBadRequest, "image is required")
		return
	}
	ctx, cancel := callContext(r, false)
	defer cancel()
	resp, err := h.svc.ProcessImage(ctx, backend.VisionRequest{Model: req.Model, Image: req.Image, Prompt: req.Prompt})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.VisionResponse{Description: resp.Description, Model: resp.Model})
}

func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Backend: string(h.svc.ActiveIdentity()), Models: toModels(models)})
}

// pullModel streams progress as NDJSON. Failures before the first progress
// line get a regular JSON error response.
func (h *handlers) pullModel(w http.ResponseWriter, r *http.Request) {
	var req types.PullRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	ctx, cancel := callContext(r, true)
	defer cancel()
	var nd *ndjson
	err := h.svc.DownloadModel(ctx, req.Name, func(p backend.PullProgress) {
		if nd == nil {
			nd = newNDJSON(w, r)
		}
		nd.send(toPullProgress(p))
	})
	if err != nil {
		if nd == nil {
			writeError(w, err)
			return
		}
		nd.abort(r, err)
		return
	}
	if nd == nil {
		nd = newNDJSON(w, r)
	}
	nd.send(types.PullProgress{Model: req.Name, Status: "success", Done: true})
}

func (h *handlers) deleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "model name is required")
		return
	}
	ctx, cancel := callContext(r, false)
	defer cancel()
	models, err := h.svc.DeleteModel(ctx, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Backend: string(h.svc.ActiveIdentity()), Models: toModels(models)})
}

// ndjson writes one JSON value per line and flushes after each.
type ndjson struct {
	enc   *json.Encoder
	flush func()
}

func newNDJSON(w http.ResponseWriter, r *http.Request) *ndjson {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	out := io.Writer(w)
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{log: requestLogger(r)})
	}
	nd := &ndjson{enc: json.NewEncoder(out), flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		nd.flush = f.Flush
	}
	return nd
}

func (nd *ndjson) send(v any) bool {
	if err := nd.enc.Encode(v); err != nil {
		return false
	}
	nd.flush()
	return true
}

// abort ends a stream with an error line. The status code is already sent.
func (nd *ndjson) abort(r *http.Request, err error) {
	reason := "backend"
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		reason = "client"
	}
	IncrementStreamAbort(reason)
	log := requestLogger(r)
	log.Warn().Err(err).Str("reason", reason).Msg("stream aborted")
	nd.send(map[string]any{"error": err.Error(), "done": true})
}
