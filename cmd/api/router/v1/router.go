package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	brokerport "chatwire/internal/infrastructure/broker/port"
	qport "chatwire/internal/infrastructure/queue/port"
	"chatwire/internal/infrastructure/realtime"
	"chatwire/internal/pkg/chat/application/service"
	clientport "chatwire/internal/pkg/chat/clients/port"
	"chatwire/internal/pkg/chat/presentation/controller"
	httpHandler "chatwire/internal/pkg/chat/presentation/http"
)

// Deps carries everything the chat endpoints need, built once in main.
type Deps struct {
	Registry     *realtime.Registry
	Chat         *service.ChatService
	Auth         *service.AuthorizationService
	Reservations clientport.ReservationService
	Users        clientport.UserService
	Broker       brokerport.Broker
	Queue        qport.Client
	Log          *logrus.Entry
}

// RegisterRoutes builds the chat controllers and mounts every route. It
// returns the socket controller so main can start the broker fanout.
func RegisterRoutes(r *gin.Engine, d Deps) *controller.ChatSocketController {
	socketCtl := controller.NewChatSocketController(
		d.Registry, d.Chat, d.Auth, d.Reservations, d.Broker, d.Queue, d.Log)

	httpHandler.RegisterRoutes(r, httpHandler.Controllers{
		Socket:   socketCtl,
		Contacts: controller.NewContactsController(d.Auth, d.Reservations, d.Users, d.Log),
		History:  controller.NewHistoryController(d.Chat, d.Log),
		ChatID:   controller.NewChatIDController(d.Auth, d.Chat),
	})
	return socketCtl
}
