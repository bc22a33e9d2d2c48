package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/yeshengliu/social-media/internal/configuration"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/api/chats")
	{
		chatRoute.GET("/:userId", container.ChatHandler.GetChats)
		chatRoute.POST("/:userId", container.ChatHandler.CreateInbox)
	}
}
