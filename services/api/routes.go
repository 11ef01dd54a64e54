// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the chat endpoints with the router.
//
// Description:
//
//	The router group should already carry CORS, recovery, and tracing
//	middleware.
//
// Endpoints:
//
//	POST /api    - Answer a business question
//	POST /       - Legacy alias kept for older frontends
//	GET  /health - Health check
//
// Inputs:
//
//	rg - Gin router group (typically the root group)
//	handlers - The handlers instance
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/api", handlers.HandleQuery)
	rg.POST("", handlers.HandleQuery)
	rg.GET("/health", handlers.HandleHealth)
}
