package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Insights API",
        "description": "Aggregated learning analytics over LMS activity data",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Insights", "description": "Progress, cohort, trend, ranking and risk analytics"},
        {"name": "Reports", "description": "Asynchronous snapshot exports"},
        {"name": "System", "description": "Observability"}
    ],
    "paths": {
        "/insights/students/{studentId}/courses/{courseId}/progress": {
            "get": {
                "tags": ["Insights"],
                "summary": "Per-course completion rollup for a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/insights/students/{studentId}/risk": {
            "get": {
                "tags": ["Insights"],
                "summary": "Risk classification for one student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/insights/courses/{courseId}/stats": {
            "get": {
                "tags": ["Insights"],
                "summary": "Cohort metric set for a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/insights/courses/{courseId}/trend": {
            "get": {
                "tags": ["Insights"],
                "summary": "Metric comparison across two time windows",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "metric", "in": "query", "required": true, "type": "string"},
                    {"name": "currentFrom", "in": "query", "required": true, "type": "string"},
                    {"name": "currentUntil", "in": "query", "required": true, "type": "string"},
                    {"name": "previousFrom", "in": "query", "required": true, "type": "string"},
                    {"name": "previousUntil", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Inconsistent window bounds"}
                }
            }
        },
        "/insights/courses/{courseId}/leaderboard": {
            "get": {
                "tags": ["Insights"],
                "summary": "Course leaderboard by average grade",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/insights/courses/leaderboard": {
            "get": {
                "tags": ["Insights"],
                "summary": "Course ranking across the platform",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/insights/courses/{courseId}/risk": {
            "get": {
                "tags": ["Insights"],
                "summary": "Risk sweep over a course roster",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a snapshot export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/status/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished export via signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Instrumentation snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CourseProgress": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "progress": {"type": "number"},
                "status": {"type": "string"},
                "completed": {"type": "integer"},
                "countable": {"type": "integer"},
                "no_data": {"type": "boolean"},
                "sections": {"type": "array", "items": {"type": "object"}},
                "computed_at": {"type": "string"}
            }
        },
        "MetricResult": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string"},
                "metric_name": {"type": "string"},
                "value": {"type": "number"},
                "sample_size": {"type": "integer"},
                "no_data": {"type": "boolean"},
                "label": {"type": "string"},
                "computed_at": {"type": "string"}
            }
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["class_stats", "leaderboard", "risk_list"]},
                "courseId": {"type": "string"},
                "metric": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["type", "courseId", "format"]
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
