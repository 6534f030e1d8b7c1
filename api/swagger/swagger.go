package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Merchandising Batch API",
        "description": "Stages item master change requests in batches and posts them downstream",
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
        {"name": "Batches", "description": "Batch lifecycle"},
        {"name": "Records", "description": "Records staged inside a batch"},
        {"name": "Barcodes", "description": "Item master lookups and the uniqueness guard"},
        {"name": "References", "description": "Item master reference lists"},
        {"name": "Store Listing", "description": "Store listing workbooks"}
    ],
    "paths": {
        "/batches": {
            "get": {
                "tags": ["Batches"],
                "summary": "List batches",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "request_type", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "mine", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Batches"],
                "summary": "Open a new batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown request type", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/batches/{batch_number}": {
            "get": {
                "tags": ["Batches"],
                "summary": "Get a batch with its records",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/batches/{batch_number}/post": {
            "post": {
                "tags": ["Batches"],
                "summary": "Post a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Batch closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Empty batch", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/batches/{batch_number}/export": {
            "get": {
                "tags": ["Batches"],
                "summary": "Export a batch",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/batches/{batch_number}/history": {
            "get": {
                "tags": ["Batches"],
                "summary": "Audit history of a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/batches/{batch_number}/records": {
            "get": {
                "tags": ["Records"],
                "summary": "List records of a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"},
                    {"name": "request_type", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Records"],
                "summary": "Save a record",
                "description": "Accepts JSON or multipart with payload, request_type and an optional image",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveRecordRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Barcode already used or batch closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/batches/{batch_number}/records/validate": {
            "post": {
                "tags": ["Records"],
                "summary": "Validate a record without saving",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveRecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Valid", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/batches/{batch_number}/records/{id}": {
            "get": {
                "tags": ["Records"],
                "summary": "Get a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Records"],
                "summary": "Update a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveRecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Records"],
                "summary": "Delete a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batch_number", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/barcodes/{barcode}": {
            "get": {
                "tags": ["Barcodes"],
                "summary": "Item master details for a barcode",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "barcode", "in": "path", "required": true, "type": "string"},
                    {"name": "batch_number", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown barcode", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/barcodes/{barcode}/used": {
            "get": {
                "tags": ["Barcodes"],
                "summary": "Check whether a barcode is already claimed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "barcode", "in": "path", "required": true, "type": "string"},
                    {"name": "batch_number", "in": "query", "required": true, "type": "string"},
                    {"name": "request_type", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Guard result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/references/uom": {
            "get": {"tags": ["References"], "summary": "Units of measure", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/references/selling-uom": {
            "get": {"tags": ["References"], "summary": "Selling units of measure", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/references/departments": {
            "get": {"tags": ["References"], "summary": "Departments", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/references/departments/{dept}/sub-departments": {
            "get": {
                "tags": ["References"],
                "summary": "Sub departments of a department",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "dept", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/references/stores": {
            "get": {"tags": ["References"], "summary": "Stores", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/derived-fields": {
            "post": {
                "tags": ["References"],
                "summary": "Compute display name and standard pack",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DerivedInput"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/store-listing/template": {
            "get": {"tags": ["Store Listing"], "summary": "Download the store listing workbook", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "File"}}}
        },
        "/store-listing/parse": {
            "post": {
                "tags": ["Store Listing"],
                "summary": "Read store codes from an uploaded workbook",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Missing or unreadable file"}}
            }
        },
        "/stores/validate": {
            "post": {
                "tags": ["Store Listing"],
                "summary": "Split store codes into known and unknown",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateStoresRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/files": {
            "get": {
                "summary": "Download a stored image via a signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "File"}, "400": {"description": "Missing token"}, "401": {"description": "Invalid or expired token"}}
            }
        }
    },
    "definitions": {
        "CreateBatchRequest": {
            "type": "object",
            "required": ["request_type"],
            "properties": {
                "request_type": {"type": "string", "enum": ["change_description", "change_packaging", "change_price_cost", "change_status", "change_store_listing", "new_barcode", "new_item"]}
            }
        },
        "SaveRecordRequest": {
            "type": "object",
            "required": ["payload"],
            "properties": {
                "request_type": {"type": "string"},
                "payload": {"type": "object"}
            }
        },
        "DerivedInput": {
            "type": "object",
            "properties": {
                "brand": {"type": "string"},
                "description": {"type": "string"},
                "variant": {"type": "string"},
                "size": {"type": "string"},
                "uom": {"type": "string"},
                "standard_pack": {"type": "string"},
                "raw_barcode": {"type": "string"}
            }
        },
        "ValidateStoresRequest": {
            "type": "object",
            "required": ["codes"],
            "properties": {
                "codes": {"type": "array", "items": {"type": "string"}}
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
                "title": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object"}
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
