package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable API",
        "description": "Timetable generation and conflict-resolution engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetables", "description": "Generation, publishing and versioning"},
        {"name": "Entries", "description": "Manual cell edits"},
        {"name": "Substitutions", "description": "Temporary teacher overrides"},
        {"name": "Conflicts", "description": "Persisted generation conflicts"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a draft timetable",
                "responses": {
                    "201": {"description": "Draft created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Missing scheduling context"}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List timetables",
                "parameters": [
                    {"name": "branchId", "in": "query", "type": "string"},
                    {"name": "academicSessionId", "in": "query", "type": "string"},
                    {"name": "shiftId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a timetable",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/timetables/{id}/validate": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Replay a timetable's cells and report conflicts",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Validation result"}
                }
            }
        },
        "/timetables/{id}/publish": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Publish a timetable as a new version",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Published"},
                    "409": {"description": "Unresolved conflicts"}
                }
            }
        },
        "/timetables/{id}/restore/{versionId}": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Restore a previously published version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "versionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Restored"},
                    "404": {"description": "Version not found"}
                }
            }
        },
        "/timetables/{id}/versions": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List published versions",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/timetables/{id}/versions/{versionId}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get one published version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "versionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/timetables/{id}/entries": {
            "get": {
                "tags": ["Entries"],
                "summary": "List a timetable's cells",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "sectionId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/entries": {
            "post": {
                "tags": ["Entries"],
                "summary": "Create a cell",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Cell collides with existing schedule"}
                }
            }
        },
        "/entries/{id}": {
            "put": {
                "tags": ["Entries"],
                "summary": "Update a cell",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Updated"},
                    "409": {"description": "Cell collides with existing schedule"}
                }
            },
            "delete": {
                "tags": ["Entries"],
                "summary": "Delete a cell",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/substitutions": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Create a substitution",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/substitutions/bulk": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Create substitutions for a teacher's cells in bulk",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/substitutions/active": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List substitutions active today",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/substitutions/{id}/cancel": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Cancel a substitution",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Cancelled"}
                }
            }
        },
        "/timetables/{id}/teacher-absences": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Cover all of an absent teacher's periods on a date",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Coverage report"}
                }
            }
        },
        "/timetables/{id}/available-teachers": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List teachers free for the given day and periods",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "day", "in": "query", "required": true, "type": "integer"},
                    {"name": "periods", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/timetables/{id}/conflicts": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "List a timetable's persisted conflicts",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "includeResolved", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/conflicts/{id}/resolve": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Mark a conflict as resolved",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Resolved"}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime metrics snapshot",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalItems": {"type": "integer"},
                "totalPages": {"type": "integer"}
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
