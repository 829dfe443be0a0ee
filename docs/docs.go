// Package docs holds the Swagger 2.0 document served at /swagger. It is kept
// in step with the @-annotations on the handlers by hand.
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
        "/vote-types": {
            "get": {
                "produces": ["application/json"],
                "tags": ["VoteTypes"],
                "summary": "List active vote types",
                "operationId": "listVoteTypes",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.VoteTypesResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Topics"],
                "summary": "List topics (paginated)",
                "operationId": "listTopics",
                "parameters": [
                    {"type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "Title substring", "name": "search", "in": "query"},
                    {"type": "boolean", "description": "Include merged or deactivated topics", "name": "include_inactive", "in": "query"},
                    {"type": "string", "description": "Creator profile ID", "name": "created_by", "in": "query"},
                    {"type": "string", "description": "created_at, vote_count or view_count", "name": "order_by", "in": "query"},
                    {"type": "string", "description": "asc or desc", "name": "direction", "in": "query"},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListTopicsResponse"}},
                    "304": {"description": "Not Modified"},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Topics"],
                "summary": "Create a topic",
                "operationId": "createTopic",
                "parameters": [
                    {"description": "Topic", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateTopicRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreateTopicResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics/similar": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Topics"],
                "summary": "Find topics with a similar title",
                "operationId": "findSimilarTopics",
                "parameters": [
                    {"type": "string", "description": "Title to match", "name": "title", "in": "query", "required": true},
                    {"type": "string", "description": "Topic ID to exclude", "name": "exclude_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TopicsResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Topics"],
                "summary": "Get a topic",
                "operationId": "getTopic",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Topic"}},
                    "404": {"description": "Topic not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Topics"],
                "summary": "Edit a topic",
                "operationId": "updateTopic",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateTopicRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CreateTopicResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Topic not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics/{id}/link": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["Topics"],
                "summary": "Merge a topic into another one",
                "operationId": "linkTopic",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true},
                    {"description": "Target", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LinkTopicRequest"}}
                ],
                "responses": {
                    "204": {"description": "Linked"},
                    "400": {"description": "Invalid link", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Topic not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics/{id}/votes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Votes"],
                "summary": "Cast or change a vote",
                "operationId": "castVote",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Voter profile ID", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Replay protection key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Vote payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CastVoteResponse"}},
                    "400": {"description": "Invalid vote", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Verification required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Topic not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Topic closed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics/{id}/votes/me": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Votes"],
                "summary": "Get the caller's vote",
                "operationId": "getMyVote",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CastVoteResponse"}},
                    "404": {"description": "No vote", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics/{id}/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Results"],
                "summary": "Get topic results",
                "operationId": "getResults",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "Recompute even when fresh", "name": "force", "in": "query"},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.VoteResultsCache"}},
                    "304": {"description": "Not Modified"},
                    "404": {"description": "Topic not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/topics/{id}/suggestions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Suggestions"],
                "summary": "List pending similarity suggestions",
                "operationId": "listSuggestions",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuggestionsResponse"}},
                    "404": {"description": "Topic not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Suggestions"],
                "summary": "Report a duplicate topic",
                "operationId": "reportSuggestion",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Topic ID", "name": "id", "in": "path", "required": true},
                    {"description": "Similar topic", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ReportSuggestionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.TopicSimilaritySuggestion"}},
                    "400": {"description": "Invalid link", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Already reported", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/suggestions/{id}/review": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Suggestions"],
                "summary": "Accept or reject a suggestion",
                "operationId": "reviewSuggestion",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Suggestion ID", "name": "id", "in": "path", "required": true},
                    {"description": "Decision", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ReviewSuggestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.TopicSimilaritySuggestion"}},
                    "404": {"description": "Suggestion not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Already reviewed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "domain.Topic": {"type": "object"},
        "domain.VoteResultsCache": {"type": "object"},
        "domain.TopicSimilaritySuggestion": {"type": "object"},
        "handlers.VoteTypesResponse": {"type": "object"},
        "handlers.ListTopicsResponse": {"type": "object"},
        "handlers.TopicsResponse": {"type": "object"},
        "handlers.CreateTopicRequest": {"type": "object"},
        "handlers.CreateTopicResponse": {"type": "object"},
        "handlers.LinkTopicRequest": {"type": "object"},
        "handlers.UpdateTopicRequest": {"type": "object"},
        "handlers.CastVoteRequest": {"type": "object"},
        "handlers.CastVoteResponse": {"type": "object"},
        "handlers.SuggestionsResponse": {"type": "object"},
        "handlers.ReportSuggestionRequest": {"type": "object"},
        "handlers.ReviewSuggestionRequest": {"type": "object"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "VoteHub API",
	Description:      "Topics, votes, cached results and duplicate-topic suggestions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
