package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam Results API",
        "description": "Processes national examination marks into graded results, rankings and location summaries.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Results", "description": "Processing runs"},
        {"name": "Analytics", "description": "Processed results, rankings and summaries"},
        {"name": "Exports", "description": "Ranking exports"}
    ],
    "paths": {
        "/exams/{id}/process": {
            "post": {
                "tags": ["Results"],
                "summary": "Queue results processing for an exam",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ProcessRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Exam not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Processing already active", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/unprocess": {
            "post": {
                "tags": ["Results"],
                "summary": "Discard processed results of an exam",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Cleared"},
                    "409": {"description": "Processing active", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/processing-runs/{id}": {
            "get": {
                "tags": ["Results"],
                "summary": "Processing run status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/result": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Candidate result with positions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Results not processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/schools/{schoolId}/analysis": {
            "get": {
                "tags": ["Analytics"],
                "summary": "School summary, subject aggregates and positions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "schoolId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/rankings/schools": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Schools ranked within a scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "scope", "in": "query", "type": "string", "enum": ["national", "region", "council", "ward"]},
                    {"name": "scope_id", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/rankings/subjects/{code}": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Schools ranked on one subject within a scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "scope", "in": "query", "type": "string", "enum": ["national", "region", "council", "ward"]},
                    {"name": "scope_id", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/regions/{regionId}/summary": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Region roll-up with councils",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "regionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/locations": {
            "get": {
                "tags": ["Analytics"],
                "summary": "National location hierarchy with summaries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export a ranking as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a generated export",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ProcessRequest": {
            "type": "object",
            "properties": {
                "include_absent": {"type": "boolean"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["kind", "format", "scope"],
            "properties": {
                "kind": {"type": "string", "enum": ["school_ranking", "subject_ranking"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "scope": {"type": "string", "enum": ["national", "region", "council", "ward"]},
                "scope_id": {"type": "string"},
                "subject_code": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
