package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Configuration Engine API",
        "description": "CRUD service for hierarchical, typed configuration entries",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Configurations", "description": "Configuration entry management"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/configurations": {
            "get": {
                "tags": ["Configurations"],
                "summary": "List configurations",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer", "description": "Page size (max 100)"},
                    {"name": "offset", "in": "query", "type": "integer", "description": "Offset from start"}
                ],
                "responses": {
                    "200": {"description": "Page of configurations", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Configurations"],
                "summary": "Create configuration",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Configuration"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"},
                    "409": {"description": "Duplicate key"}
                }
            }
        },
        "/api/v1/configurations/by-id/{id}": {
            "get": {
                "tags": ["Configurations"],
                "summary": "Get configuration by id",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Configuration", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Configurations"],
                "summary": "Partially update configuration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Configuration"}}
                ],
                "responses": {
                    "200": {"description": "Updated configuration", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Configurations"],
                "summary": "Delete configuration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/configurations/by-id/{id}/audit": {
            "get": {
                "tags": ["Configurations"],
                "summary": "List the audit trail of a configuration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "required": false, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Audit records, newest first", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/api/v1/configurations/parent-options": {
            "get": {
                "tags": ["Configurations"],
                "summary": "List parent options for a new configuration",
                "responses": {
                    "200": {"description": "Eligible parents", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/configurations/parent-options/by/{id}": {
            "get": {
                "tags": ["Configurations"],
                "summary": "List parent options excluding a node and its descendants",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Eligible parents", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Configuration": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "key": {"type": "string"},
                "label": {"type": "string"},
                "description": {"type": "string"},
                "data_type": {"type": "string", "enum": ["string", "number", "date", "list"]},
                "default_value": {"type": "string"},
                "active": {"type": "boolean"},
                "parent_config_id": {"type": "string"},
                "validation_rules": {"type": "array", "items": {"type": "object"}},
                "parent_conditions": {"type": "array", "items": {"type": "object"}},
                "translations": {"type": "array", "items": {"type": "object"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
