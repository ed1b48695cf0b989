// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["system"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}
        },
        "/metrics": {
            "get": {"tags": ["system"], "summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "OK"}}}
        },
        "/auth/sign-up": {
            "post": {"tags": ["auth"], "summary": "Create an operator account", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/auth/sign-in": {
            "post": {"tags": ["auth"], "summary": "Obtain a bearer token", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/v1/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Current operator", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Operator"}}, "401": {"description": "Unauthorized"}}}
        },
        "/api/v1/ports": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["link"], "summary": "List ports", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/link": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["link"], "summary": "Link status", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.LinkStatus"}}}}
        },
        "/api/v1/link/connect": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["link"], "summary": "Open the device link", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/connectRequest"}}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "502": {"description": "Bad Gateway"}}}
        },
        "/api/v1/link/disconnect": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["link"], "summary": "Close the device link", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/telemetry": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["telemetry"], "summary": "Telemetry window", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/telemetry/capacity": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["telemetry"], "summary": "Resize the telemetry window", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"capacity": {"type": "string", "example": "300"}}}}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/diagnostics": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["telemetry"], "summary": "Diagnostic lines", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/parameters": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["parameters"], "summary": "List parameters", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/parameters/stored": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["parameters"], "summary": "Stored parameters", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/parameters/{key}/pending": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["parameters"], "summary": "Stage a parameter edit", "parameters": [{"in": "path", "name": "key", "type": "string", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/valueRequest"}}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/parameters/{key}": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["parameters"], "summary": "Send a parameter", "parameters": [{"in": "path", "name": "key", "type": "string", "required": true}, {"in": "body", "name": "body", "schema": {"$ref": "#/definitions/valueRequest"}}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/logs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["logs"], "summary": "List link journal entries", "parameters": [{"in": "query", "name": "from", "type": "string"}, {"in": "query", "name": "to", "type": "string"}, {"in": "query", "name": "type", "type": "string", "enum": ["CONNECT", "DISCONNECT", "LINK_ERROR", "WRITE", "PARAM_DISCOVERED", "PARSE_WARNING", "RESIZE"]}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        }
    },
    "definitions": {
        "credentials": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "connectRequest": {
            "type": "object",
            "required": ["port"],
            "properties": {"port": {"type": "string", "example": "/dev/ttyUSB0"}, "baud_rate": {"type": "integer", "example": 9600}}
        },
        "valueRequest": {
            "type": "object",
            "properties": {"value": {"type": "string", "example": "2.5"}}
        },
        "models.Operator": {
            "type": "object",
            "properties": {"id": {"type": "integer"}, "username": {"type": "string"}}
        },
        "models.LinkStatus": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "enum": ["DISCONNECTED", "CONNECTED_GRACE", "CONNECTED", "CLOSED"]},
                "port": {"type": "string"},
                "baud_rate": {"type": "integer"},
                "connected_at": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "PID tuner API",
	Description:      "Live telemetry and parameter tuning for a serial PID controller.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
