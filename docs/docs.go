// Package docs registers the OpenAPI document served at /swagger/doc.json.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/api/claims": {
            "post": {
                "summary": "Submit a refund or misdeposit claim",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "request_type", "in": "formData", "required": true, "enum": ["refund", "misdeposit"]},
                    {"type": "string", "name": "request_date", "in": "formData"},
                    {"type": "string", "name": "deposit_date", "in": "formData", "required": true},
                    {"type": "string", "name": "deposit_time", "in": "formData"},
                    {"type": "string", "name": "deposit_amount", "in": "formData", "required": true},
                    {"type": "string", "name": "bank_name", "in": "formData", "required": true},
                    {"type": "string", "name": "beneficiary_account", "in": "formData", "required": true},
                    {"type": "string", "name": "beneficiary_account_name", "in": "formData", "required": true},
                    {"type": "string", "name": "contractor_code", "in": "formData", "required": true},
                    {"type": "string", "name": "merchant_code", "in": "formData", "required": true},
                    {"type": "string", "name": "applicant_name", "in": "formData", "required": true},
                    {"type": "string", "name": "applicant_phone", "in": "formData", "required": true},
                    {"type": "string", "name": "details", "in": "formData"},
                    {"type": "boolean", "name": "terms_agreed", "in": "formData", "required": true},
                    {"type": "file", "name": "deposit_files[]", "in": "formData", "required": true},
                    {"type": "file", "name": "identity_files[]", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Receipt"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Quota exceeded", "schema": {"$ref": "#/definitions/Error"}},
                    "422": {"description": "File content rejected", "schema": {"$ref": "#/definitions/Error"}},
                    "507": {"description": "Upload storage full", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/claims/status/{code}": {
            "get": {
                "summary": "Look up a claim by request code",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "code", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PublicStatus"}},
                    "400": {"description": "Malformed code", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "Unknown code", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/login": {
            "post": {
                "summary": "Obtain an admin token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/Error"}},
                    "429": {"description": "Locked out", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/claims": {
            "get": {"summary": "List claims", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Create a claim on behalf of an applicant", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Created"}}}}
        },
        "/admin/claims/export": {
            "get": {"summary": "Export claims as xlsx or csv", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/admin/claims/{id}": {
            "get": {"summary": "Get a claim with files and status history", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "put": {"summary": "Patch fields, delete and add files", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "delete": {"summary": "Delete a claim and its files", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}
        },
        "/admin/claims/{id}/status": {
            "put": {"summary": "Move a claim through the workflow", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "409": {"description": "Transition not allowed"}}}
        },
        "/admin/claims/{id}/files": {
            "post": {"summary": "Attach files to a claim", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/admin/claims/{id}/files/{fileId}": {
            "delete": {"summary": "Remove one attachment", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}}}
        },
        "/admin/files/{storedFilename}": {
            "get": {"summary": "Download a decrypted attachment", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "Receipt": {
            "type": "object",
            "properties": {
                "request_code": {"type": "string", "example": "R-261016-001-A1F"}
            }
        },
        "Created": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "request_code": {"type": "string", "example": "R-261016-001-A1F"}
            }
        },
        "PublicStatus": {
            "type": "object",
            "properties": {
                "applicant_name": {"type": "string", "example": "H**"},
                "status": {"type": "string", "enum": ["pending", "received", "in_progress", "completed", "rejected"]},
                "created_at": {"type": "string", "format": "date-time"},
                "request_type": {"type": "string", "enum": ["refund", "misdeposit"]}
            }
        },
        "Error": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "field": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ReasonsForm API",
	Description:      "Refund and misdeposit claim intake and administration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
