// Package dispatcher owns the backend registry and routes capability calls to
// the single active backend. It is structured into small files by concern:
//
//   - dispatcher.go: Dispatcher type, constructor, registration, Shutdown.
//   - config.go: Config and package defaults; New applies defaults.
//   - settings.go: Settings, SettingsPatch and UpdateSettings.
//   - select.go: activation, preferred-then-fallback selection, SwitchBackend.
//   - route.go: capability entry points and model management.
//   - status.go: AllBackendStatus and ActiveIdentity.
//   - events.go: typed events and the EventPublisher interface.
//   - eventpub_memory.go, broadcast.go: publishers.
//   - metrics.go: Prometheus collectors.
//
// Selection and switching are serialized by one mutex; readers of the active
// backend only take a read lock, so capability calls never wait on a switch
// that is still probing a candidate.
package dispatcher
