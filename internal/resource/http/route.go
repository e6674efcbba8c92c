package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/driving-school-backend/internal/resource"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	instructors := g.Group("/instructors")
	instructors.Use(authMiddleware)
	{
		instructors.GET("", h.List(resource.KindInstructor))
		instructors.GET("/:id", h.Get(resource.KindInstructor))
	}

	vehicles := g.Group("/vehicles")
	vehicles.Use(authMiddleware)
	{
		vehicles.GET("", h.List(resource.KindVehicle))
		vehicles.GET("/:id", h.Get(resource.KindVehicle))
	}
}
