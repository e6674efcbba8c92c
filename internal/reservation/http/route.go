package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the handlers. Writes additionally pass staffMiddleware.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/reservations")
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", staffMiddleware, h.Create)
		group.PATCH("/:id", staffMiddleware, h.Update)
		group.DELETE("/:id", staffMiddleware, h.Delete)
	}

	g.GET("/vehicles/:id/window", authMiddleware, h.Window)
}
