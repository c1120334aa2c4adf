package dispatcher

import (
	"context"
	"fmt"
	"iter"

	"aidispatch/internal/backend"
)

// activeFor returns the active backend if it supports c.
func (d *Dispatcher) activeFor(c backend.Capability) (backend.Backend, error) {
	b := d.current()
	if b == nil {
		return nil, backend.ErrNotInitialized("")
	}
	if !b.HasCapability(c) {
		return nil, backend.ErrUnsupportedCapability(b.Identity(), c)
	}
	return b, nil
}

func observe(c backend.Capability, b backend.Backend, err error) {
	id := "none"
	if b != nil {
		id = string(b.Identity())
	}
	callsTotal.WithLabelValues(string(c), id, outcome(err)).Inc()
}

// Chat opens a streaming chat on the active backend.
func (d *Dispatcher) Chat(ctx context.Context, req backend.ChatRequest) (iter.Seq2[string, error], error) {
	b, err := d.activeFor(backend.CapChat)
	if err != nil {
		observe(backend.CapChat, b, err)
		return nil, err
	}
	seq, err := b.Chat(ctx, req)
	observe(backend.CapChat, b, err)
	return seq, err
}

func (d *Dispatcher) ChatComplete(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error) {
	b, err := d.activeFor(backend.CapChat)
	if err != nil {
		observe(backend.CapChat, b, err)
		return backend.ChatResponse{}, err
	}
	resp, err := b.ChatComplete(ctx, req)
	observe(backend.CapChat, b, err)
	return resp, err
}

func (d *Dispatcher) GenerateEmbedding(ctx context.Context, req backend.EmbeddingRequest) (backend.EmbeddingResult, error) {
	b, err := d.activeFor(backend.CapEmbeddings)
	if err != nil {
		observe(backend.CapEmbeddings, b, err)
		return backend.EmbeddingResult{}, err
	}
	res, err := b.GenerateEmbedding(ctx, req)
	observe(backend.CapEmbeddings, b, err)
	return res, err
}

func (d *Dispatcher) ProcessImage(ctx context.Context, req backend.VisionRequest) (backend.VisionResponse, error) {
	b, err := d.activeFor(backend.CapVision)
	if err != nil {
		observe(backend.CapVision, b, err)
		return backend.VisionResponse{}, err
	}
	resp, err := b.ProcessImage(ctx, req)
	observe(backend.CapVision, b, err)
	return resp, err
}

// ListModels returns the active backend's catalog. Backends without model
// management report the models from their status.
func (d *Dispatcher) ListModels(ctx context.Context) ([]backend.ModelInfo, error) {
	b := d.current()
	if b == nil {
		return nil, backend.ErrNotInitialized("")
	}
	if mm, ok := b.(backend.ModelManager); ok {
		return mm.ListModels(ctx)
	}
	return b.Status(ctx).Models, nil
}

func (d *Dispatcher) manager() (backend.Backend, backend.ModelManager, error) {
	b := d.current()
	if b == nil {
		return nil, nil, backend.ErrNotInitialized("")
	}
	mm, ok := b.(backend.ModelManager)
	if !ok {
		return b, nil, fmt.Errorf("%w: %s", ErrModelManagementUnsupported, b.Identity())
	}
	return b, mm, nil
}

// DownloadModel pulls name on the active backend. Every progress update is
// published as a model-download-progress event and passed to onProgress when
// it is non-nil.
func (d *Dispatcher) DownloadModel(ctx context.Context, name string, onProgress func(backend.PullProgress)) error {
	b, mm, err := d.manager()
	if err != nil {
		return err
	}
	id := b.Identity()
	err = mm.DownloadModel(ctx, name, func(p backend.PullProgress) {
		d.emit(Event{Kind: EventModelDownloadProgress, Backend: id, Progress: &p})
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		d.log.Warn().Err(err).Str("backend", string(id)).Str("model", name).Msg("model download failed")
		d.emitError(err, id)
		return err
	}
	d.log.Info().Str("backend", string(id)).Str("model", name).Msg("model downloaded")
	d.emit(Event{Kind: EventStatusChanged, Backend: id})
	return nil
}

// DeleteModel removes name and returns the refreshed catalog.
func (d *Dispatcher) DeleteModel(ctx context.Context, name string) ([]backend.ModelInfo, error) {
	b, mm, err := d.manager()
	if err != nil {
		return nil, err
	}
	models, err := mm.DeleteModel(ctx, name)
	if err != nil {
		d.emitError(err, b.Identity())
		return nil, err
	}
	d.emit(Event{Kind: EventStatusChanged, Backend: b.Identity()})
	return models, nil
}
