// Package docs registers the OpenAPI document served at /swagger/*any.
// Regenerate with `swag init -g cmd/assistant/main.go` after changing
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
        "/chat": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Ask the study assistant",
                "parameters": [
                    {"description": "Student message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChatResponse"}},
                    "400": {"description": "Empty or too long message", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Backend quota exceeded", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Backend error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "504": {"description": "Backend timeout", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "List documents",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DocumentsResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Upload a document",
                "parameters": [
                    {"type": "file", "description": "PDF or Word file", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.UploadResponse"}},
                    "400": {"description": "Missing file, unsupported type or unreadable content", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Delete a document (JSON body)",
                "parameters": [
                    {"description": "Document ID", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.DeleteDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/documents/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Search documents",
                "parameters": [
                    {"type": "string", "description": "Search text", "name": "q", "in": "query", "required": true},
                    {"type": "integer", "default": 5, "description": "Max results (1..20)", "name": "k", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/documents/{id}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Delete a document",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/documents/{id}/text": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["documents"],
                "summary": "Extracted text of a document",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/questions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["questions"],
                "summary": "List questions",
                "parameters": [
                    {"type": "string", "default": "all", "description": "all | answered | pending", "name": "status", "in": "query"},
                    {"type": "string", "description": "Search text", "name": "q", "in": "query"},
                    {"type": "string", "description": "newest | oldest", "name": "sort", "in": "query"},
                    {"type": "string", "description": "Weak ETag from a previous response", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.QuestionsResponse"}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["questions"],
                "summary": "Answer a question (JSON body)",
                "parameters": [
                    {"description": "Question id and answer", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AnswerQuestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.QuestionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["questions"],
                "summary": "Submit a question to the teachers",
                "parameters": [
                    {"type": "string", "description": "Deduplication key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Question", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubmitQuestionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.QuestionResponse"}},
                    "400": {"description": "Missing field or invalid Idempotency-Key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/questions/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["questions"],
                "summary": "Question counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.QuestionStats"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/questions/{id}/answer": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["questions"],
                "summary": "Answer a question",
                "parameters": [
                    {"type": "string", "description": "Question ID", "name": "id", "in": "path", "required": true},
                    {"description": "Answer", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AnswerQuestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.QuestionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Document": {
            "type": "object",
            "properties": {
                "filePath": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"},
                "originalName": {"type": "string"},
                "size": {"type": "integer"},
                "textPreview": {"type": "string"},
                "type": {"type": "string"},
                "uploadDate": {"type": "string"}
            }
        },
        "domain.Question": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "answered": {"type": "boolean"},
                "answeredAt": {"type": "string"},
                "id": {"type": "string"},
                "question": {"type": "string"},
                "studentId": {"type": "string"},
                "studentName": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "domain.QuestionStats": {
            "type": "object",
            "properties": {
                "answered": {"type": "integer"},
                "pending": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "handlers.AnswerQuestionRequest": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "id": {"type": "string"}
            }
        },
        "handlers.ChatRequest": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Tư tưởng Hồ Chí Minh về đại đoàn kết dân tộc là gì?"}
            }
        },
        "handlers.ChatResponse": {
            "type": "object",
            "properties": {
                "escalated": {"type": "boolean"},
                "response": {"type": "string"}
            }
        },
        "handlers.DeleteDocumentRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"}
            }
        },
        "handlers.DocumentsResponse": {
            "type": "object",
            "properties": {
                "documents": {"type": "array", "items": {"$ref": "#/definitions/domain.Document"}}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.QuestionResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "question": {"$ref": "#/definitions/domain.Question"},
                "success": {"type": "boolean"}
            }
        },
        "handlers.QuestionsResponse": {
            "type": "object",
            "properties": {
                "questions": {"type": "array", "items": {"$ref": "#/definitions/domain.Question"}}
            }
        },
        "handlers.SearchResponse": {
            "type": "object",
            "properties": {
                "results": {"type": "array", "items": {"$ref": "#/definitions/services.DocumentHit"}}
            }
        },
        "handlers.SubmitQuestionRequest": {
            "type": "object",
            "properties": {
                "question": {"type": "string", "example": "Vì sao Bác chọn con đường cách mạng vô sản?"},
                "studentId": {"type": "string", "example": "SV001"},
                "studentName": {"type": "string", "example": "Nguyễn Văn A"}
            }
        },
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "handlers.UploadResponse": {
            "type": "object",
            "properties": {
                "document": {"$ref": "#/definitions/domain.Document"},
                "message": {"type": "string"},
                "pages": {"type": "integer"},
                "success": {"type": "boolean"},
                "textLength": {"type": "integer"}
            }
        },
        "services.DocumentHit": {
            "type": "object",
            "properties": {
                "documentId": {"type": "string"},
                "documentName": {"type": "string"},
                "score": {"type": "number"},
                "snippet": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Study Assistant API",
	Description:      "Ho Chi Minh Thought tutor chat, course document uploads and the teacher question registry.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
