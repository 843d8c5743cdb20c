// Package docs holds the OpenAPI description of the agent API served under
// /swagger. Regenerate with `swag init -g cmd/server/main.go` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/health": {"get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "Agent is healthy", "schema": {"$ref": "#/definitions/models.HealthResponse"}}}}},
        "/version": {"get": {"tags": ["health"], "summary": "Version", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/api/equipment": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["equipment"], "summary": "List equipment", "parameters": [{"type": "string", "name": "propertyId", "in": "query", "required": true}, {"type": "string", "name": "type", "in": "query"}, {"type": "string", "name": "subtype", "in": "query"}, {"type": "string", "name": "search", "in": "query"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/api/equipment/{id}": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["equipment"], "summary": "Get equipment", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/api/equipment/{id}/checklist": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["equipment"], "summary": "Get checklist template", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/equipment/{id}/history": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["equipment"], "summary": "Get maintenance history", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "List sessions", "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}": {
            "get": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Open session", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SessionResponse"}}, "404": {"description": "Not Found"}}},
            "delete": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Discard session", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/api/sessions/{key}/validation": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Validate current step", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/measurements": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Enter measurement", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/status": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Toggle item status", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/observations": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Set observation", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/protocol": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Answer protocol question", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/instruments": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Set instruments", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/photos": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Capture photo", "consumes": ["multipart/form-data"], "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}, {"type": "file", "name": "file", "in": "formData", "required": true}, {"type": "string", "name": "section", "in": "formData", "required": true}, {"type": "string", "name": "itemId", "in": "formData"}], "responses": {"201": {"description": "Created"}, "413": {"description": "Payload Too Large"}, "422": {"description": "Unprocessable Entity"}}}},
        "/api/sessions/{key}/photos/{uri}": {"delete": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Remove photo", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}, {"type": "string", "name": "uri", "in": "path", "required": true}, {"type": "string", "name": "section", "in": "query", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/advance": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Advance step", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}},
        "/api/sessions/{key}/back": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Previous step", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/sessions/{key}/finalize": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sessions"], "summary": "Finalize session", "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"202": {"description": "Accepted"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}},
        "/api/sync/push": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sync"], "summary": "Push queued work", "responses": {"200": {"description": "OK"}, "504": {"description": "Gateway Timeout"}}}},
        "/api/sync/pull": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sync"], "summary": "Pull equipment", "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}}}},
        "/api/sync/status": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["sync"], "summary": "Get sync status", "responses": {"200": {"description": "OK"}}}},
        "/api/sync/scheduler": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["sync"], "summary": "Get scheduler status", "responses": {"200": {"description": "OK"}}}},
        "/api/sync/queue": {"get": {"security": [{"ApiKeyAuth": []}], "tags": ["sync"], "summary": "List sync queue", "parameters": [{"type": "string", "name": "status", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/api/sync/queue/{id}/retry": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["sync"], "summary": "Retry failed entry", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}}
    },
    "definitions": {
        "models.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "issues": {"type": "array", "items": {"type": "object"}}}},
        "models.HealthResponse": {"type": "object", "properties": {"status": {"type": "string"}, "timestamp": {"type": "string"}}},
        "models.SessionResponse": {"type": "object", "properties": {"session": {"type": "object"}, "canAdvance": {"type": "boolean"}, "issues": {"type": "array", "items": {"type": "object"}}}}
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Fieldsync Inspector API",
	Description:      "Local-first maintenance inspection agent: sessions, photo capture and background sync.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
