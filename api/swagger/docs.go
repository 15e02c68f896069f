// Package swagger registers the OpenAPI document of the ragchat HTTP API.
package swagger

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
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Dependency health",
                "responses": {
                    "200": {"description": "all dependencies healthy", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "at least one dependency unhealthy", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Prometheus text metrics",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/chat": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Run one chat turn",
                "description": "Creates a session when session_id is omitted.",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/biz.ChatResult"}},
                    "400": {"description": "invalid request"},
                    "404": {"description": "session not found"},
                    "502": {"description": "retrieval or generation failed"},
                    "504": {"description": "upstream call timed out"}
                }
            }
        },
        "/v1/documents": {
            "post": {
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Ingest a text document",
                "parameters": [
                    {"name": "request", "in": "body", "schema": {"$ref": "#/definitions/handler.DocumentRequest"}},
                    {"name": "file", "in": "formData", "type": "file", "description": "text/* file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.DocumentResponse"}},
                    "400": {"description": "no text could be extracted"},
                    "413": {"description": "request body too large"}
                }
            }
        },
        "/v1/sessions": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Create a session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/biz.SessionView"}}}
            }
        },
        "/v1/sessions/{id}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Delete a session",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "session not found"}}
            }
        },
        "/v1/sessions/{id}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Session history",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/biz.SessionView"}},
                    "404": {"description": "session not found"}
                }
            }
        },
        "/v1/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["stats"],
                "summary": "Store, session and metric overview",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/biz.Stats"}}}
            }
        }
    },
    "definitions": {
        "biz.ChatResult": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "reply": {"type": "string"}
            }
        },
        "biz.ChunkFailure": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "biz.SessionView": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "created_at": {"type": "string"},
                "last_active": {"type": "string"},
                "state": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/llm.Message"}}
            }
        },
        "biz.Stats": {
            "type": "object",
            "properties": {
                "backend": {"type": "string"},
                "collection": {"type": "string"},
                "points": {"type": "integer"},
                "collections": {"type": "array", "items": {"type": "string"}},
                "sessions": {"type": "integer"},
                "metrics": {"type": "object"}
            }
        },
        "handler.ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "session_id": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handler.DocumentRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "text": {"type": "string"}
            }
        },
        "handler.DocumentResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "source": {"type": "string"},
                "total": {"type": "integer"},
                "succeeded": {"type": "integer"},
                "failures": {"type": "array", "items": {"$ref": "#/definitions/biz.ChunkFailure"}}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "version": {"type": "string"},
                "dependencies": {"type": "object"}
            }
        },
        "llm.Message": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "content": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ragchat API",
	Description:      "Retrieval-augmented chat over ingested documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
