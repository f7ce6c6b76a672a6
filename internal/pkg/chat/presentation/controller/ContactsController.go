package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chatwire/internal/pkg/chat/application/service"
	"chatwire/internal/pkg/chat/clients/port"
)

// chatContact is the list entry returned by the contacts endpoint.
type chatContact struct {
	ID        string `json:"id"`
	Sub       string `json:"sub"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// ContactsController lists the users the caller holds a chat-enabling
// reservation with, decorated with their public profiles.
type ContactsController struct {
	auth         *service.AuthorizationService
	reservations port.ReservationService
	users        port.UserService
	log          *logrus.Entry
}

func NewContactsController(auth *service.AuthorizationService, reservations port.ReservationService, users port.UserService, log *logrus.Entry) *ContactsController {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ContactsController{auth: auth, reservations: reservations, users: users, log: log}
}

func (h *ContactsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := c.GetHeader("Authorization")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		me, err := h.auth.Me(ctx, bearer)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ids, err := h.reservations.CounterpartIDs(ctx, bearer, me.ID)
		if err != nil {
			h.log.WithError(err).Error("contacts: counterpart lookup failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not load contacts"})
			return
		}

		contacts := make([]chatContact, 0, len(ids))
		for _, id := range ids {
			p, err := h.users.PublicProfileByID(ctx, id)
			if err != nil || p == nil {
				// A contact without a resolvable profile still shows up.
				contacts = append(contacts, chatContact{ID: id, Name: "User"})
				continue
			}
			contacts = append(contacts, chatContact{
				ID:        p.ID,
				Sub:       p.Sub,
				Name:      p.Name,
				Email:     p.Email,
				AvatarURL: p.AvatarURL,
			})
		}
		c.JSON(http.StatusOK, contacts)
	}
}
