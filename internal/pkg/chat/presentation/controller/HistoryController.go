package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chatwire/internal/pkg/chat/application/service"
	chat "chatwire/internal/pkg/chat/domain"
)

// HistoryController returns the decrypted message history of one thread.
type HistoryController struct {
	chat *service.ChatService
	log  *logrus.Entry
}

func NewHistoryController(chatSvc *service.ChatService, log *logrus.Entry) *HistoryController {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HistoryController{chat: chatSvc, log: log}
}

func (h *HistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chatId")
		if chatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		msgs, err := h.chat.History(ctx, chatID)
		if err != nil {
			h.log.WithField("chatId", chatID).WithError(err).Error("history load failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load chat history"})
			return
		}

		out := make([]chat.Envelope, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, h.chat.ToEnvelope(m))
		}
		c.JSON(http.StatusOK, out)
	}
}
