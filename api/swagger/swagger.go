package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Class Scheduling Engine",
        "description": "Automatic class scheduling, conflict resolution and 1-on-1 matching",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scheduling", "description": "Scheduling request lifecycle"},
        {"name": "Matching", "description": "1-on-1 teacher matching"},
        {"name": "Admin", "description": "Batch and maintenance operations"}
    ],
    "paths": {
        "/scheduling/requests": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Run a scheduling request synchronously",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SchedulingRequestPayload"}}
                ],
                "responses": {
                    "200": {"description": "Terminal scheduling result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/scheduling/requests/async": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Queue a scheduling request for background processing",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SchedulingRequestPayload"}}
                ],
                "responses": {
                    "202": {"description": "Request accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Async queue is full"}
                }
            }
        },
        "/scheduling/requests/{id}": {
            "get": {
                "tags": ["Scheduling"],
                "summary": "Poll a scheduling request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Current status and result when terminal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired request"}
                }
            },
            "delete": {
                "tags": ["Scheduling"],
                "summary": "Cancel an in-flight scheduling request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Cancelled"},
                    "409": {"description": "Request already terminal"}
                }
            }
        },
        "/matching/one-on-one": {
            "post": {
                "tags": ["Matching"],
                "summary": "Match a student with the best teacher and slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OneOnOneBookingPayload"}}
                ],
                "responses": {
                    "200": {"description": "Ranked recommendations", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No feasible candidate"}
                }
            }
        },
        "/admin/daily-update": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the daily data update batch",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DailyUpdatePayload"}}
                ],
                "responses": {
                    "200": {"description": "Run status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid service token"}
                }
            }
        },
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "SchedulingRequestPayload": {
            "type": "object",
            "required": ["operation", "studentIds", "courseId"],
            "properties": {
                "operation": {"type": "string", "enum": ["auto_schedule", "reschedule", "conflict_resolution", "optimization", "content_sync", "manual_override"]},
                "priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "courseId": {"type": "string"},
                "preferredSlots": {"type": "array", "items": {"$ref": "#/definitions/TimeSlotPayload"}},
                "preferredContent": {"type": "array", "items": {"type": "string"}},
                "requestedBy": {"type": "string"}
            }
        },
        "TimeSlotPayload": {
            "type": "object",
            "required": ["startTime", "endTime"],
            "properties": {
                "startTime": {"type": "string", "format": "date-time"},
                "endTime": {"type": "string", "format": "date-time"},
                "location": {"type": "string"}
            }
        },
        "OneOnOneBookingPayload": {
            "type": "object",
            "required": ["studentId", "courseId", "durationMinutes"],
            "properties": {
                "studentId": {"type": "string"},
                "courseId": {"type": "string"},
                "preferredTeacherId": {"type": "string"},
                "durationMinutes": {"type": "integer", "minimum": 15, "maximum": 180},
                "flexibleTime": {"type": "boolean"},
                "flexibleTeacher": {"type": "boolean"},
                "flexibleDuration": {"type": "boolean"},
                "autoConfirm": {"type": "boolean"}
            }
        },
        "DailyUpdatePayload": {
            "type": "object",
            "required": ["components"],
            "properties": {
                "components": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "required": ["name"],
                        "properties": {
                            "name": {"type": "string"},
                            "dependsOn": {"type": "array", "items": {"type": "string"}},
                            "critical": {"type": "boolean"}
                        }
                    }
                },
                "maxRetries": {"type": "integer"},
                "initialDelayMs": {"type": "integer"},
                "backoffMultiplier": {"type": "number"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "category": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
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
