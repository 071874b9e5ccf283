package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "OpenCourse Media API",
        "description": "Media storage and delivery service for the OpenCourse platform",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Files", "description": "Media upload, metadata and delivery"},
        {"name": "Admin", "description": "Operational endpoints"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/files": {
            "get": {
                "tags": ["Files"],
                "summary": "List files visible to the caller",
                "parameters": [
                    {"name": "category", "in": "query", "type": "string", "enum": ["VIDEO", "DOCUMENT", "IMAGE", "OTHER"]},
                    {"name": "visibility", "in": "query", "type": "string", "enum": ["PUBLIC", "PROTECTED", "PRIVATE"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Files"],
                "summary": "Upload a media file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "visibility", "in": "formData", "type": "string", "enum": ["PUBLIC", "PROTECTED", "PRIVATE"]},
                    {"name": "expiresIn", "in": "formData", "type": "string", "description": "Retention duration, e.g. 720h"},
                    {"name": "courseId", "in": "formData", "type": "string"},
                    {"name": "lessonId", "in": "formData", "type": "string"},
                    {"name": "postId", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure"},
                    "413": {"description": "File exceeds size limit"}
                }
            }
        },
        "/files/batch": {
            "post": {
                "tags": ["Files"],
                "summary": "Upload multiple media files",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "files", "in": "formData", "type": "file", "required": true},
                    {"name": "visibility", "in": "formData", "type": "string", "enum": ["PUBLIC", "PROTECTED", "PRIVATE"]}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/BatchUploadResponse"}}
                }
            }
        },
        "/files/{id}": {
            "get": {
                "tags": ["Files"],
                "summary": "Get file metadata",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Authentication required"},
                    "403": {"description": "Insufficient credentials"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Files"],
                "summary": "Delete a file and its metadata",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Not the uploader or an administrator"}
                }
            }
        },
        "/files/{id}/visibility": {
            "patch": {
                "tags": ["Files"],
                "summary": "Change a file's visibility tier",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateVisibilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}/stream": {
            "get": {
                "tags": ["Files"],
                "summary": "Stream a video file with Range support",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "token", "in": "query", "type": "string"},
                    {"name": "Range", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Full content"},
                    "206": {"description": "Partial content"},
                    "416": {"description": "Range not satisfiable"}
                }
            }
        },
        "/files/{id}/download": {
            "get": {
                "tags": ["Files"],
                "summary": "Download a file as an attachment",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/admin/cleanup": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run a cleanup sweep immediately",
                "responses": {
                    "200": {"description": "Sweep summary", "schema": {"$ref": "#/definitions/SweepSummary"}}
                }
            }
        },
        "/admin/files/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export the media catalog",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Catalog file"},
                    "400": {"description": "Unknown format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "UpdateVisibilityRequest": {
            "type": "object",
            "required": ["visibility"],
            "properties": {
                "visibility": {"type": "string", "enum": ["PUBLIC", "PROTECTED", "PRIVATE"]}
            }
        },
        "BatchUploadResponse": {
            "type": "object",
            "properties": {
                "files": {"type": "array", "items": {"type": "object"}},
                "accepted": {"type": "integer"},
                "rejected": {"type": "integer"}
            }
        },
        "SweepSummary": {
            "type": "object",
            "properties": {
                "orphaned": {"type": "integer"},
                "expired": {"type": "integer"},
                "temp_files": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
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
