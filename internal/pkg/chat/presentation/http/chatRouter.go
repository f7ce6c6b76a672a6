package http

import (
	"github.com/gin-gonic/gin"

	"chatwire/internal/pkg/chat/presentation/controller"
)

// Controllers bundles the chat endpoints for route registration.
type Controllers struct {
	Socket   *controller.ChatSocketController
	Contacts *controller.ContactsController
	History  *controller.HistoryController
	ChatID   *controller.ChatIDController
}

// RegisterRoutes mounts the chat REST endpoints under /api/chat and the
// realtime websocket endpoint at /ws/chat.
func RegisterRoutes(r *gin.Engine, ctls Controllers) {
	api := r.Group("/api/chat")
	api.GET("/contacts", ctls.Contacts.Handle())
	api.GET("/history/:chatId", ctls.History.Handle())
	api.GET("/chat-id/with/:otherUserId", ctls.ChatID.Handle())

	r.GET("/ws/chat", ctls.Socket.Handle())
}
