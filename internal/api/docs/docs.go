// Package docs registers the Swagger document served under /docs.
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
        "/clear": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Remove every playground container and network",
                "produces": ["application/json"],
                "tags": ["Playground"],
                "summary": "Clear the playground",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}},
                    "502": {"description": "Container engine failure", "schema": {"$ref": "#/definitions/api.APIError"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Report whether the container engine is reachable",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Healthy", "schema": {"type": "object"}},
                    "503": {"description": "Container engine unreachable", "schema": {"type": "object"}}
                }
            }
        },
        "/metadata": {
            "get": {
                "description": "Playground limits clients validate against",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Playground metadata",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Metadata"}}
                }
            }
        },
        "/network/add": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Networks"],
                "summary": "Create a network",
                "parameters": [{"description": "Network", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/validation.NetworkAddCommand"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/api.APIError"}},
                    "502": {"description": "Container engine failure", "schema": {"$ref": "#/definitions/api.APIError"}}
                }
            }
        },
        "/network/delete": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Networks"],
                "summary": "Remove a network",
                "parameters": [{"description": "Network id", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/validation.ResourceDeleteCommand"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/api.APIError"}}
                }
            }
        },
        "/network/edit": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Networks"],
                "summary": "Set the proxies and services attached to a network",
                "parameters": [{"description": "Membership", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/validation.NetworkEditCommand"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/api.APIError"}}
                }
            }
        },
        "/proxy/add": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Proxies"],
                "summary": "Start an Envoy proxy",
                "parameters": [{"description": "Proxy", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/validation.ProxyAddCommand"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/api.APIError"}}
                }
            }
        },
        "/proxy/delete": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Proxies"],
                "summary": "Remove a proxy",
                "parameters": [{"description": "Proxy id", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/validation.ResourceDeleteCommand"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}}
                }
            }
        },
        "/resources": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Playground"],
                "summary": "Current networks, proxies and services",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/service/add": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Services"],
                "summary": "Start an upstream service",
                "parameters": [{"description": "Service", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/validation.ServiceAddCommand"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/api.APIError"}}
                }
            }
        },
        "/service/delete": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Services"],
                "summary": "Remove a service",
                "parameters": [{"description": "Service id", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/validation.ResourceDeleteCommand"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/playground.Response"}}
                }
            }
        }
    },
    "definitions": {
        "api.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "details": {"type": "string"},
                "field_errors": {"type": "object", "additionalProperties": {"type": "string"}},
                "context": {"type": "object", "additionalProperties": true}
            }
        },
        "validation.NetworkAddCommand": {
            "type": "object",
            "properties": {"name": {"type": "string"}}
        },
        "validation.NetworkEditCommand": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "proxies": {"type": "array", "items": {"type": "string"}},
                "services": {"type": "array", "items": {"type": "string"}}
            }
        },
        "validation.PortMapping": {
            "type": "object",
            "properties": {
                "mapping_from": {"type": "integer"},
                "mapping_to": {"type": "integer"}
            }
        },
        "validation.ProxyAddCommand": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "configuration": {"type": "string"},
                "port_mappings": {"type": "array", "items": {"$ref": "#/definitions/validation.PortMapping"}}
            }
        },
        "validation.ResourceDeleteCommand": {
            "type": "object",
            "properties": {"id": {"type": "string"}}
        },
        "validation.ServiceAddCommand": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "service_type": {"type": "string"},
                "configuration": {"type": "string"}
            }
        },
        "playground.Metadata": {
            "type": "object",
            "properties": {
                "version": {"type": "string"},
                "max_network_connections": {"type": "integer"},
                "min_name_length": {"type": "integer"},
                "max_name_length": {"type": "integer"},
                "min_config_length": {"type": "integer"},
                "max_config_length": {"type": "integer"}
            }
        },
        "playground.Response": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Envoy Playground API",
	Description:      "Control plane for the Envoy playground: networks, proxies and services backed by Docker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
