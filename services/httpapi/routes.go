// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches the v1 API to the router.
func RegisterRoutes(r *gin.Engine, h *Handlers) {
	v1 := r.Group("/v1")
	{
		v1.GET("/health", h.Health)
		v1.POST("/sms/inbound", h.InboundSMS)
		v1.POST("/chat", h.Chat)
		v1.POST("/verify/start", h.VerifyStart)
		v1.POST("/verify/check", h.VerifyCheck)
	}
}
