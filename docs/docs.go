// Package docs holds the OpenAPI description served at /swagger.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/analyses": {
            "get": {
                "description": "Returns the latest analysis per ticker ordered by conviction, then upside",
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "List analyses",
                "parameters": [
                    {"type": "string", "description": "Ticker (e.g., AAPL)", "name": "ticker", "in": "query"},
                    {"type": "string", "description": "Signal (STRONG BUY, BUY, HOLD, SELL, STRONG SELL)", "name": "signal", "in": "query"},
                    {"type": "string", "description": "Valuation confidence (High, Medium, Low)", "name": "confidence", "in": "query"},
                    {"type": "string", "description": "Sector name", "name": "sector", "in": "query"},
                    {"type": "integer", "description": "Minimum conviction (1-5)", "name": "min_conviction", "in": "query"},
                    {"type": "integer", "default": 50, "description": "Number of records (default 50, max 200)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/api/analyses/run": {
            "post": {
                "description": "Analyzes the stored snapshots for the given tickers, or all stored tickers when none are given",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "Run an analysis batch",
                "parameters": [
                    {"description": "Tickers to analyze", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handler.runRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/api/analyses/{ticker}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "Get the latest analysis for a ticker",
                "parameters": [
                    {"type": "string", "description": "Ticker", "name": "ticker", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/api/analyses/{ticker}/chart": {
            "get": {
                "description": "Returns a PNG with price, Bollinger bands, intrinsic value and buy price",
                "produces": ["image/png"],
                "tags": ["analyses"],
                "summary": "Get the analysis chart for a ticker",
                "parameters": [
                    {"type": "string", "description": "Ticker", "name": "ticker", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/api/snapshots": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "Store snapshots and price history",
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "Bad Request"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/api/report": {
            "get": {
                "description": "Signal distribution, confidence counts, top buys and failures of the last run",
                "produces": ["application/json"],
                "tags": ["analyses"],
                "summary": "Latest batch report",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        }
    },
    "definitions": {
        "handler.runRequest": {
            "type": "object",
            "properties": {
                "tickers": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Equity Screener API",
	Description:      "Valuation, relative ranking, technicals and fused signals for a watchlist of equities.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
