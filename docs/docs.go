// Package docs registers the OpenAPI document for the contact API with swag,
// so http-swagger can serve it. Keep it in step with the handler annotations.
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
        "/contacts": {
            "get": {
                "description": "Page of contacts with filters, free-text search and ordering. With statsOnly=true only the per-status counters are returned.",
                "produces": ["application/json"],
                "tags": ["contacts"],
                "summary": "List contacts",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Page size", "name": "pageSize", "in": "query"},
                    {"type": "string", "default": "updateStatus", "description": "updateStatus, updatedNewest, updatedOldest or name", "name": "sortBy", "in": "query"},
                    {"type": "string", "description": "Case-insensitive text matched against company, phone, address, site and notes", "name": "search", "in": "query"},
                    {"type": "string", "description": "not_contacted, no_answer, callback_needed, contacted or all", "name": "phone_status", "in": "query"},
                    {"type": "string", "description": "yes, maybe, no or all", "name": "interesse", "in": "query"},
                    {"type": "string", "description": "yes, maybe, no or all", "name": "reindirizzato", "in": "query"},
                    {"type": "string", "description": "true, false or all", "name": "isPinned", "in": "query"},
                    {"type": "boolean", "description": "Attach counters computed over the same filter", "name": "includeStats", "in": "query"},
                    {"type": "boolean", "description": "Return only the counters for the whole collection", "name": "statsOnly", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ContactPage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "put": {
                "description": "Partial update by id. Changing phone_status clears interesse, reindirizzato and callbackAt when the new status does not allow them.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["contacts"],
                "summary": "Update a contact",
                "parameters": [
                    {"description": "Contact id and fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UpdateContactRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.UpdateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Insert a single contact object or an array of contacts",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["contacts"],
                "summary": "Create contacts",
                "parameters": [
                    {"description": "Contact or array of contacts", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.Contact"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.InsertResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/contacts/initialize": {
            "post": {
                "description": "One-time import into an empty collection, from the body or from the configured CSV source",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["maintenance"],
                "summary": "Seed the contact list",
                "parameters": [
                    {"description": "Contacts to seed; omit to load the CSV source", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/models.InitializeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.InitializeResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/contacts/migrate": {
            "post": {
                "description": "Destructive: deletes every contact and inserts the supplied list. A populated collection requires force=true.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["maintenance"],
                "summary": "Replace all contacts",
                "parameters": [
                    {"description": "Replacement contacts", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.MigrateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MigrateResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/contacts/stats": {
            "get": {
                "description": "Total and per phone status counts over the whole collection",
                "produces": ["application/json"],
                "tags": ["contacts"],
                "summary": "Contact counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ContactStats"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/contacts/{id}/qrcode": {
            "get": {
                "description": "PNG QR code with a tel: link to the contact's phone number",
                "produces": ["image/png"],
                "tags": ["contacts"],
                "summary": "Dial QR code",
                "parameters": [
                    {"type": "string", "description": "Contact id", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 256, "description": "Image size in pixels", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.Contact": {
            "type": "object",
            "properties": {
                "azienda": {"type": "string"},
                "callbackAt": {"type": "string"},
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "indirizzo": {"type": "string"},
                "interesse": {"type": "string", "enum": ["yes", "maybe", "no"]},
                "isPinned": {"type": "boolean"},
                "note": {"type": "string"},
                "phone_status": {"type": "string", "enum": ["not_contacted", "no_answer", "callback_needed", "contacted"]},
                "reindirizzato": {"type": "string", "enum": ["yes", "maybe", "no"]},
                "sito": {"type": "string"},
                "telefono": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.ContactPage": {
            "type": "object",
            "properties": {
                "contacts": {"type": "array", "items": {"$ref": "#/definitions/models.Contact"}},
                "stats": {"$ref": "#/definitions/models.TimestampedStats"},
                "totalCount": {"type": "integer"}
            }
        },
        "models.ContactStats": {
            "type": "object",
            "properties": {
                "callback_needed": {"type": "integer"},
                "contacted": {"type": "integer"},
                "no_answer": {"type": "integer"},
                "non_contacted": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "models.TimestampedStats": {
            "type": "object",
            "properties": {
                "_timestamp": {"type": "string"},
                "callback_needed": {"type": "integer"},
                "contacted": {"type": "integer"},
                "no_answer": {"type": "integer"},
                "non_contacted": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "details": {"type": "string"},
                "error": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "models.InitializeRequest": {
            "type": "object",
            "properties": {
                "contacts": {"type": "array", "items": {"$ref": "#/definitions/models.Contact"}}
            }
        },
        "models.InitializeResult": {
            "type": "object",
            "properties": {
                "existingCount": {"type": "integer"},
                "inserted": {"type": "integer"},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "models.InsertResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "inserted": {"type": "integer"}
            }
        },
        "models.MigrateRequest": {
            "type": "object",
            "properties": {
                "contacts": {"type": "array", "items": {"$ref": "#/definitions/models.Contact"}},
                "force": {"type": "boolean"}
            }
        },
        "models.MigrateResult": {
            "type": "object",
            "properties": {
                "backupUrl": {"type": "string"},
                "message": {"type": "string"},
                "migrated": {"type": "integer"},
                "success": {"type": "boolean"}
            }
        },
        "models.UpdateContactRequest": {
            "type": "object",
            "properties": {
                "azienda": {"type": "string"},
                "callbackAt": {"type": "string"},
                "id": {"type": "string", "example": "contact_12"},
                "indirizzo": {"type": "string"},
                "interesse": {"type": "string"},
                "isPinned": {"type": "boolean"},
                "note": {"type": "string"},
                "phone_status": {"type": "string"},
                "reindirizzato": {"type": "string"},
                "sito": {"type": "string"},
                "telefono": {"type": "string"}
            }
        },
        "models.UpdateResponse": {
            "type": "object",
            "properties": {
                "updated": {"type": "integer"}
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
	Title:            "Call Center CRM API",
	Description:      "Contact list, call outcomes and outreach counters for the call center",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
