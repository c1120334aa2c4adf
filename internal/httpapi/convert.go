package httpapi

import (
	"aidispatch/internal/backend"
	"aidispatch/internal/dispatcher"
	"aidispatch/pkg/types"
)

func toModels(in []backend.ModelInfo) []types.Model {
	out := make([]types.Model, len(in))
	for i, m := range in {
		out[i] = types.Model{
			Name:       m.Name,
			Size:       m.Size,
			Downloaded: m.Downloaded,
			Kind:       string(m.Kind),
			Dimensions: m.Dimensions,
		}
	}
	return out
}

func toBackendStatus(st backend.Status, active bool) types.BackendStatus {
	caps := make([]string, len(st.Capabilities))
	for i, c := range st.Capabilities {
		caps[i] = string(c)
	}
	out := types.BackendStatus{
		Identity:     string(st.Identity),
		Available:    st.Available,
		Initialized:  st.Initialized,
		Active:       active,
		Capabilities: caps,
		Version:      st.Version,
		Error:        st.Error,
	}
	if len(st.Models) > 0 {
		out.Models = toModels(st.Models)
	}
	return out
}

func toSettings(s dispatcher.Settings) types.Settings {
	out := types.Settings{
		PreferredBackend: string(s.Preferred),
		FallbackEnabled:  s.FallbackEnabled,
		FallbackOrder:    make([]string, len(s.FallbackOrder)),
	}
	for i, id := range s.FallbackOrder {
		out.FallbackOrder[i] = string(id)
	}
	if len(s.Connections) > 0 {
		out.Connections = make(map[string]types.ConnectionParams, len(s.Connections))
		for id, p := range s.Connections {
			out.Connections[string(id)] = types.ConnectionParams(p)
		}
	}
	return out
}

func fromSettingsPatch(p types.SettingsPatch) dispatcher.SettingsPatch {
	var out dispatcher.SettingsPatch
	if p.PreferredBackend != nil {
		id := backend.Identity(*p.PreferredBackend)
		out.Preferred = &id
	}
	out.FallbackEnabled = p.FallbackEnabled
	if p.FallbackOrder != nil {
		out.FallbackOrder = make([]backend.Identity, len(p.FallbackOrder))
		for i, id := range p.FallbackOrder {
			out.FallbackOrder[i] = backend.Identity(id)
		}
	}
	if len(p.Connections) > 0 {
		out.Connections = make(map[backend.Identity]backend.ConnectionParams, len(p.Connections))
		for id, c := range p.Connections {
			out.Connections[backend.Identity(id)] = backend.ConnectionParams(c)
		}
	}
	return out
}

func fromChatRequest(req types.ChatRequest) backend.ChatRequest {
	msgs := make([]backend.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = backend.Message{Role: m.Role, Content: m.Content, Images: m.Images}
	}
	return backend.ChatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func toPullProgress(p backend.PullProgress) types.PullProgress {
	return types.PullProgress{
		Model:     p.Model,
		Status:    p.Status,
		Completed: p.Completed,
		Total:     p.Total,
		Percent:   p.Percent,
	}
}
