// Package docs holds the Swagger document of the REST API, in the layout swag init writes
// from the handler annotations of package restapi.
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
        "/entities": {
            "get": {
                "security": [{"Bearer": []}],
                "description": "ListEntities responds with the IDs of the locally owned entities currently loaded.",
                "produces": ["application/json"],
                "tags": ["Entities"],
                "summary": "ListEntities returns the IDs of the live entities.",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"type": "string"}}
                    }
                }
            },
            "post": {
                "security": [{"Bearer": []}],
                "description": "CreateEntity adds the entity and responds once it was written back. An ID is minted when none is given.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Entities"],
                "summary": "CreateEntity adds a new locally owned entity.",
                "parameters": [
                    {
                        "description": "Entity to add",
                        "name": "entity",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/restapi.CreateRequest"}
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {"$ref": "#/definitions/restapi.EntityView"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"type": "object", "additionalProperties": {}}
                    }
                }
            }
        },
        "/entities/{id}": {
            "get": {
                "security": [{"Bearer": []}],
                "description": "GetEntity responds with the entity as JSON; kind tells whether this node owns it.",
                "produces": ["application/json"],
                "tags": ["Entities"],
                "summary": "GetEntity returns the entity with the given ID, loading it if needed.",
                "parameters": [
                    {"minLength": 1, "type": "string", "description": "ID of the entity", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/restapi.EntityView"}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"type": "object", "additionalProperties": {}}
                    }
                }
            },
            "delete": {
                "security": [{"Bearer": []}],
                "description": "DeleteEntity marks the entity deleted; it is removed from storage when the request ends.",
                "tags": ["Entities"],
                "summary": "DeleteEntity deletes a locally owned entity.",
                "parameters": [
                    {"minLength": 1, "type": "string", "description": "ID of the entity", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {
                        "description": "Not Found",
                        "schema": {"type": "object", "additionalProperties": {}}
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {"type": "object", "additionalProperties": {}}
                    }
                }
            },
            "patch": {
                "security": [{"Bearer": []}],
                "description": "PatchEntity sets the fields of the body on the entity; a null value removes the field.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Entities"],
                "summary": "PatchEntity sets fields of a locally owned entity.",
                "parameters": [
                    {"minLength": 1, "type": "string", "description": "ID of the entity", "name": "id", "in": "path", "required": true},
                    {
                        "description": "Fields to set",
                        "name": "fields",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object", "additionalProperties": {}}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/restapi.EntityView"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"type": "object", "additionalProperties": {}}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"type": "object", "additionalProperties": {}}
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {"type": "object", "additionalProperties": {}}
                    }
                }
            }
        },
        "/entities/{id}/call/{method}": {
            "post": {
                "security": [{"Bearer": []}],
                "description": "CallEntity forwards the call and responds with its result. The body is the JSON array of arguments.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Entities"],
                "summary": "CallEntity forwards a method call to the node owning a remote entity.",
                "parameters": [
                    {"minLength": 1, "type": "string", "description": "ID of the entity", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Method to call", "name": "method", "in": "path", "required": true},
                    {
                        "description": "Arguments",
                        "name": "args",
                        "in": "body",
                        "schema": {"type": "array", "items": {}}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {}}
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {"type": "object", "additionalProperties": {}}
                    },
                    "501": {
                        "description": "Not Implemented",
                        "schema": {"type": "object", "additionalProperties": {}}
                    }
                }
            }
        },
        "/stats": {
            "get": {
                "security": [{"Bearer": []}],
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Stats returns the node and the number of live entities.",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {}}
                    }
                }
            }
        }
    },
    "definitions": {
        "restapi.CreateRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "fields": {"type": "object", "additionalProperties": {}},
                "id": {"type": "string"},
                "initial": {"type": "string"}
            }
        },
        "restapi.EntityView": {
            "type": "object",
            "properties": {
                "data": {"type": "object", "additionalProperties": {}},
                "id": {"type": "string"},
                "kind": {"type": "string"},
                "node": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "Bearer": {
            "description": "Type \"Bearer\" followed by a space and the API or Okta token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "livepers REST API",
	Description:      "Inspect and mutate the live entities of a persistence node.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
