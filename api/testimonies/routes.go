package testimonies

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
)

// RegisterRoutes registers testimony routes. Uploads get their own
// middleware since they are heavier than reads.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies, uploadMiddleware ...gin.HandlerFunc) {
	router.POST("", append(uploadMiddleware, Post(deps))...)
	router.GET("", List(deps))
	router.GET("/:id", Get(deps))
}
