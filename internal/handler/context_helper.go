package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-bid-api/internal/middleware"
	"github.com/noah-isme/course-bid-api/internal/models"
)

func userIDFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return ""
	}
	id, _ := value.(string)
	return id
}

func roleFromContext(c *gin.Context) models.UserRole {
	value, exists := c.Get(middleware.ContextUserRole)
	if !exists {
		return ""
	}
	role, _ := value.(models.UserRole)
	return role
}
