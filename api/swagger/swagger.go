package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Legal Notice API",
        "description": "Records blockchain-served legal notices, stores their documents and gates recipient access.",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "Notices", "description": "Served notice records"},
        {"name": "Recipient", "description": "Wallet-gated recipient access"},
        {"name": "Documents", "description": "Thumbnail and document storage"},
        {"name": "Energy", "description": "Energy rental relay"},
        {"name": "Admin", "description": "Operator endpoints"}
    ],
    "paths": {
        "/notices": {
            "post": {
                "tags": ["Notices"],
                "summary": "Record a served notice",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateNoticeInput"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/notices/{noticeId}": {
            "get": {
                "tags": ["Notices"],
                "summary": "Get a notice",
                "parameters": [{"$ref": "#/parameters/noticeId"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/notices/{noticeId}/images": {
            "get": {
                "tags": ["Notices"],
                "summary": "Links to a notice's thumbnail and document",
                "parameters": [{"$ref": "#/parameters/noticeId"}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Notices"],
                "summary": "Upload a thumbnail and/or document for a notice",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"$ref": "#/parameters/noticeId"},
                    {"name": "thumbnail", "in": "formData", "type": "file"},
                    {"name": "document", "in": "formData", "type": "file"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notices/{noticeId}/transaction": {
            "get": {
                "tags": ["Notices"],
                "summary": "Chain proof of a notice",
                "parameters": [{"$ref": "#/parameters/noticeId"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notices/{noticeId}/receipt": {
            "get": {
                "tags": ["Notices"],
                "summary": "Proof-of-service PDF",
                "produces": ["application/pdf"],
                "parameters": [{"$ref": "#/parameters/noticeId"}, {"$ref": "#/parameters/serverAddress"}],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "403": {"description": "Not the serving wallet", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/notices/{noticeId}/access-attempts": {
            "get": {
                "tags": ["Notices"],
                "summary": "Authorization log of a notice",
                "parameters": [
                    {"$ref": "#/parameters/noticeId"},
                    {"$ref": "#/parameters/serverAddress"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notices/dismiss": {
            "post": {
                "tags": ["Notices"],
                "summary": "Hide a notice from the recent list",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NoticeAction"}}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notices/restore": {
            "post": {
                "tags": ["Notices"],
                "summary": "Undo a dismissal",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NoticeAction"}}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notices/recent": {
            "get": {
                "tags": ["Notices"],
                "summary": "Undismissed notices of a server",
                "parameters": [{"$ref": "#/parameters/serverAddress"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notices/all-served": {
            "get": {
                "tags": ["Notices"],
                "summary": "Every notice of a server with statistics",
                "parameters": [{"$ref": "#/parameters/serverAddress"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notices/all-served/export": {
            "get": {
                "tags": ["Notices"],
                "summary": "CSV export of every notice of a server",
                "produces": ["text/csv"],
                "parameters": [{"$ref": "#/parameters/serverAddress"}],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/recipient/{address}/notices": {
            "get": {
                "tags": ["Recipient"],
                "summary": "Notices addressed to a wallet",
                "parameters": [{"$ref": "#/parameters/address"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/recipient/{address}/notice/{alertId}/document": {
            "get": {
                "tags": ["Recipient"],
                "summary": "Document of a notice for an authorized wallet",
                "parameters": [{"$ref": "#/parameters/address"}, {"$ref": "#/parameters/alertId"}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Wallet not authorized", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/recipient/{address}/notice/{alertId}/accept": {
            "post": {
                "tags": ["Recipient"],
                "summary": "Sign for a notice",
                "parameters": [
                    {"$ref": "#/parameters/address"},
                    {"$ref": "#/parameters/alertId"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AcceptInput"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v2/documents/upload-to-disk": {
            "post": {
                "tags": ["Documents"],
                "summary": "Store a PDF on disk",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "pdf", "in": "formData", "type": "file", "required": true},
                    {"name": "noticeId", "in": "formData", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v2/documents/serve/{filename}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Stream a disk document",
                "parameters": [
                    {"name": "filename", "in": "path", "type": "string", "required": true},
                    {"name": "token", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "Document bytes"}, "403": {"description": "Invalid token"}}
            }
        },
        "/pdf-simple/upload": {
            "post": {
                "tags": ["Documents"],
                "summary": "Store a document and return its retrieval link",
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "document", "in": "formData", "type": "file", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/pdf-simple/retrieve/{fileId}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document by id",
                "parameters": [{"name": "fileId", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Document bytes"}}
            }
        },
        "/documents/{blobId}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Stored thumbnail or document by id",
                "parameters": [{"name": "blobId", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Blob bytes"}}
            }
        },
        "/energy/createOrder": {
            "post": {
                "tags": ["Energy"],
                "summary": "Rent energy for an address",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnergyOrderRequest"}}],
                "responses": {"200": {"description": "Upstream response"}, "502": {"description": "Upstream failure"}}
            }
        },
        "/energy/checkOrder": {
            "post": {
                "tags": ["Energy"],
                "summary": "Status of an energy order",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnergyOrderQuery"}}],
                "responses": {"200": {"description": "Upstream response"}}
            }
        },
        "/energy/checkAddress": {
            "post": {
                "tags": ["Energy"],
                "summary": "Whether an address can receive energy",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnergyAddressQuery"}}],
                "responses": {"200": {"description": "Upstream response"}}
            }
        },
        "/admin/login": {
            "post": {
                "tags": ["Admin"],
                "summary": "Issue an operator token",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdminLoginRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/admin/reconcile": {
            "post": {
                "tags": ["Admin"],
                "summary": "Compare chain tokens against stored notices",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReconcileRequest"}}],
                "responses": {"200": {"description": "Report"}}
            }
        },
        "/admin/discrepancies": {
            "get": {
                "tags": ["Admin"],
                "summary": "Recorded reconciliation findings",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["open", "resolved"]},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/discrepancies/{id}/resolve": {
            "post": {
                "tags": ["Admin"],
                "summary": "Close a finding",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"204": {"description": "Resolved"}}
            }
        },
        "/admin/orphans/sweep": {
            "post": {
                "tags": ["Admin"],
                "summary": "Remove uploads never attached to a notice",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/stats": {
            "get": {
                "tags": ["Admin"],
                "summary": "Operational counters",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "parameters": {
        "noticeId": {"name": "noticeId", "in": "path", "type": "string", "required": true},
        "alertId": {"name": "alertId", "in": "path", "type": "integer", "required": true},
        "address": {"name": "address", "in": "path", "type": "string", "required": true},
        "serverAddress": {"name": "X-Server-Address", "in": "header", "type": "string", "required": true}
    },
    "definitions": {
        "CreateNoticeInput": {
            "type": "object",
            "required": ["caseNumber", "recipientAddress", "serverAddress"],
            "properties": {
                "noticeId": {"type": "string"},
                "caseNumber": {"type": "string"},
                "recipientAddress": {"type": "string"},
                "serverAddress": {"type": "string"},
                "noticeType": {"type": "string"},
                "issuingAgency": {"type": "string"},
                "ipfsHash": {"type": "string"},
                "encryptionKey": {"type": "string"},
                "alertTokenId": {"type": "integer"},
                "documentTokenId": {"type": "integer"},
                "transactionHash": {"type": "string"},
                "attachmentIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "NoticeAction": {
            "type": "object",
            "required": ["noticeId"],
            "properties": {
                "noticeId": {"type": "string"},
                "serverAddress": {"type": "string"}
            }
        },
        "AcceptInput": {
            "type": "object",
            "required": ["signature"],
            "properties": {
                "signature": {"type": "string"},
                "ipAddress": {"type": "string"},
                "userAgent": {"type": "string"}
            }
        },
        "EnergyOrderRequest": {
            "type": "object",
            "required": ["receive_address", "energy"],
            "properties": {
                "receive_address": {"type": "string"},
                "energy": {"type": "integer", "minimum": 32000},
                "duration": {"type": "string", "enum": ["1h", "1d", "3d", "7d", "14d", "30d"]},
                "out_trade_no": {"type": "string"}
            }
        },
        "EnergyOrderQuery": {
            "type": "object",
            "properties": {
                "order_no": {"type": "string"},
                "out_trade_no": {"type": "string"}
            }
        },
        "EnergyAddressQuery": {
            "type": "object",
            "required": ["address"],
            "properties": {
                "address": {"type": "string"}
            }
        },
        "AdminLoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ReconcileRequest": {
            "type": "object",
            "properties": {
                "fromTokenId": {"type": "integer"},
                "toTokenId": {"type": "integer"},
                "fromBlock": {"type": "integer"},
                "toBlock": {"type": "integer"},
                "apply": {"type": "boolean"}
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
        "ErrorEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"$ref": "#/definitions/APIError"}
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
