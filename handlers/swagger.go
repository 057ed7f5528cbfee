package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>stridedash — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the dashboard endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "stridedash", "version": "v0.1.0" },
  "paths": {
    "/auth/login": {
      "get": { "summary": "Redirect to Strava authorization page", "responses": { "302": { "description": "redirect to Strava" } } }
    },
    "/auth/callback": {
      "get": { "summary": "OAuth redirect target", "parameters": [{"name":"code","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "tokens returned" }, "401": { "description": "authorization denied or exchange failed" } } }
    },
    "/auth/authorize": {
      "post": { "summary": "Complete authorization from a pasted redirect URL", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"redirect_url":{"type":"string"}}}}}}, "responses": { "200": { "description": "tokens returned" }, "400": { "description": "invalid redirect URL" } } }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/api/v1/athlete": {
      "get": { "summary": "Authenticated athlete profile", "responses": { "200": { "description": "athlete" }, "401": { "description": "strava authorization required" } } }
    },
    "/api/v1/activities": {
      "get": { "summary": "One page of activity history", "parameters": [{"name":"page","in":"query","schema":{"type":"integer"}},{"name":"per_page","in":"query","schema":{"type":"integer"}}], "responses": { "200": { "description": "normalized activities" }, "429": { "description": "strava rate limit" } } }
    },
    "/api/v1/sync": {
      "post": { "summary": "Sync the complete history into storage", "responses": { "200": { "description": "count synced" } } }
    },
    "/api/v1/stats": {
      "get": { "summary": "Aggregated statistics over stored history", "responses": { "200": { "description": "summary" } } }
    },
    "/api/v1/export": {
      "post": { "summary": "Write a snapshot to the object archive", "responses": { "200": { "description": "object key" }, "503": { "description": "archive not configured" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
