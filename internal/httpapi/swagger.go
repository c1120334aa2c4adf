package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

type apiDoc struct{}

func (apiDoc) ReadDoc() string { return openAPIDoc }

func init() {
	swag.Register(swag.Name, apiDoc{})
}

// MountSwagger serves the API description at /swagger/doc.json and the
// Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

const openAPIDoc = `{
  "swagger": "2.0",
  "info": {
    "title": "aidispatch API",
    "description": "Capability-oriented API over local and remote AI backends.",
    "version": "1.0"
  },
  "basePath": "/",
  "schemes": ["http"],
  "consumes": ["application/json"],
  "produces": ["application/json"],
  "paths": {
    "/status": {
      "get": {
        "summary": "Status of every registered backend",
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
      }
    },
    "/switch": {
      "post": {
        "summary": "Activate another backend",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.SwitchRequest"}}],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}},
          "404": {"description": "Unknown backend", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "503": {"description": "Activation failed", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
        }
      }
    },
    "/settings": {
      "get": {
        "summary": "Current dispatcher settings",
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Settings"}}}
      },
      "patch": {
        "summary": "Change dispatcher settings",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.SettingsPatch"}}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Settings"}}}
      }
    },
    "/chat": {
      "post": {
        "summary": "Chat completion; NDJSON of ChatChunk when stream is true",
        "produces": ["application/json", "application/x-ndjson"],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.ChatRequest"}}],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatResponse"}},
          "400": {"description": "Bad request or unsupported capability", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "503": {"description": "No active backend", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
        }
      }
    },
    "/embeddings": {
      "post": {
        "summary": "Embed a string or a batch of strings",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.EmbeddingRequest"}}],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.EmbeddingResponse"}},
          "502": {"description": "Backend transport failure", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "504": {"description": "Backend timed out", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
        }
      }
    },
    "/vision": {
      "post": {
        "summary": "Describe an image",
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.VisionRequest"}}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.VisionResponse"}}}
      }
    },
    "/models": {
      "get": {
        "summary": "Models of the active backend",
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
      }
    },
    "/models/pull": {
      "post": {
        "summary": "Download a model; NDJSON of PullProgress",
        "produces": ["application/x-ndjson"],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.PullRequest"}}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.PullProgress"}}}
      }
    },
    "/models/{name}": {
      "delete": {
        "summary": "Delete a model",
        "parameters": [{"in": "path", "name": "name", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
      }
    },
    "/events": {
      "get": {
        "summary": "Websocket stream of dispatcher events",
        "responses": {"101": {"description": "Switching Protocols"}}
      }
    },
    "/healthz": {"get": {"summary": "Liveness", "responses": {"200": {"description": "ok"}}}},
    "/readyz": {"get": {"summary": "Readiness", "responses": {"200": {"description": "ready"}, "503": {"description": "no active backend"}}}}
  },
  "definitions": {
    "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}},
    "types.Model": {"type": "object", "properties": {"name": {"type": "string"}, "size": {"type": "integer"}, "downloaded": {"type": "boolean"}, "kind": {"type": "string"}, "dimensions": {"type": "integer"}}},
    "types.BackendStatus": {"type": "object", "properties": {"identity": {"type": "string"}, "available": {"type": "boolean"}, "initialized": {"type": "boolean"}, "active": {"type": "boolean"}, "capabilities": {"type": "array", "items": {"type": "string"}}, "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}, "version": {"type": "string"}, "error": {"type": "string"}}},
    "types.StatusResponse": {"type": "object", "properties": {"active": {"type": "string"}, "backends": {"type": "array", "items": {"$ref": "#/definitions/types.BackendStatus"}}, "uptime_seconds": {"type": "integer"}, "server_time_unix": {"type": "integer"}}},
    "types.SwitchRequest": {"type": "object", "properties": {"backend": {"type": "string"}}},
    "types.ConnectionParams": {"type": "object", "properties": {"base_url": {"type": "string"}, "chat_model": {"type": "string"}, "embed_model": {"type": "string"}, "vision_model": {"type": "string"}}},
    "types.Settings": {"type": "object", "properties": {"preferred_backend": {"type": "string"}, "fallback_enabled": {"type": "boolean"}, "fallback_order": {"type": "array", "items": {"type": "string"}}, "connections": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.ConnectionParams"}}}},
    "types.SettingsPatch": {"type": "object", "properties": {"preferred_backend": {"type": "string"}, "fallback_enabled": {"type": "boolean"}, "fallback_order": {"type": "array", "items": {"type": "string"}}, "connections": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.ConnectionParams"}}}},
    "types.ChatMessage": {"type": "object", "properties": {"role": {"type": "string"}, "content": {"type": "string"}, "images": {"type": "array", "items": {"type": "string"}}}},
    "types.ChatRequest": {"type": "object", "properties": {"model": {"type": "string"}, "messages": {"type": "array", "items": {"$ref": "#/definitions/types.ChatMessage"}}, "stream": {"type": "boolean"}, "temperature": {"type": "number"}, "max_tokens": {"type": "integer"}}},
    "types.ChatResponse": {"type": "object", "properties": {"content": {"type": "string"}, "model": {"type": "string"}, "finish_reason": {"type": "string"}, "prompt_tokens": {"type": "integer"}, "completion_tokens": {"type": "integer"}}},
    "types.EmbeddingRequest": {"type": "object", "properties": {"model": {"type": "string"}, "input": {"type": "string"}}},
    "types.EmbeddingResponse": {"type": "object", "properties": {"embedding": {"type": "array", "items": {"type": "number"}}, "embeddings": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}, "dimensions": {"type": "integer"}, "model": {"type": "string"}, "failed_indexes": {"type": "array", "items": {"type": "integer"}}, "error": {"type": "string"}}},
    "types.VisionRequest": {"type": "object", "properties": {"model": {"type": "string"}, "image": {"type": "string"}, "prompt": {"type": "string"}}},
    "types.VisionResponse": {"type": "object", "properties": {"description": {"type": "string"}, "model": {"type": "string"}}},
    "types.ModelsResponse": {"type": "object", "properties": {"backend": {"type": "string"}, "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}}},
    "types.PullRequest": {"type": "object", "properties": {"name": {"type": "string"}}},
    "types.PullProgress": {"type": "object", "properties": {"model": {"type": "string"}, "status": {"type": "string"}, "completed": {"type": "integer"}, "total": {"type": "integer"}, "percent": {"type": "number"}, "done": {"type": "boolean"}, "error": {"type": "string"}}}
  }
}`
