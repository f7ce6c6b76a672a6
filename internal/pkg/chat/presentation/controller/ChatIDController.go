package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatwire/internal/pkg/chat/application/service"
)

// ChatIDController computes the thread id between the caller and another
// user, so clients can address history and websocket traffic consistently.
type ChatIDController struct {
	auth *service.AuthorizationService
	chat *service.ChatService
}

func NewChatIDController(auth *service.AuthorizationService, chatSvc *service.ChatService) *ChatIDController {
	return &ChatIDController{auth: auth, chat: chatSvc}
}

func (h *ChatIDController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		otherUserID := c.Param("otherUserId")
		if otherUserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "otherUserId is required"})
			return
		}

		meID, err := h.auth.Subject(c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"chatId": h.chat.ThreadID(meID, otherUserID),
			"meId":   meID,
		})
	}
}
