package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeshengliu/social-media/internal/service"
)

type ChatHandler interface {
	GetChats(c *gin.Context)
	CreateInbox(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{
		service: service,
	}
}

// GetChats returns the chat list for a user: peer, last message preview and
// unread count per thread, most recently active first.
func (h *chatHandler) GetChats(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	chats, err := h.service.Threads(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// CreateInbox sets up an empty inbox document for a new account.
func (h *chatHandler) CreateInbox(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if err := h.service.EnsureInbox(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create inbox"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "inbox ready"})
}
