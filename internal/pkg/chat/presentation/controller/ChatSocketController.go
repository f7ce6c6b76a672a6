package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	brokerport "chatwire/internal/infrastructure/broker/port"
	qport "chatwire/internal/infrastructure/queue/port"
	"chatwire/internal/infrastructure/realtime"
	"chatwire/internal/pkg/chat/application/service"
	"chatwire/internal/pkg/chat/application/task"
	"chatwire/internal/pkg/chat/clients/port"
	chat "chatwire/internal/pkg/chat/domain"
)

const (
	bearerPrefix    = "Bearer "
	defaultReadWait = 60 * time.Second
	opTimeout       = 5 * time.Second

	// Close code used for both the missing-token and invalid-token refusals.
	closeNotAcceptable = websocket.CloseUnsupportedData
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens at the ingress layer.
		return true
	},
}

// inboundFrame is the client-to-server message shape; unknown fields are
// ignored. Type only matters for the "ping" no-op sentinel.
type inboundFrame struct {
	Type     string `json:"type"`
	ToUserID string `json:"toUserId"`
	Content  string `json:"content"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// session is the per-connection protocol state bound after authentication.
type session struct {
	userID string
	bearer string
	conn   realtime.Sender
}

// ChatSocketController is the delivery engine: it owns the websocket
// connection lifecycle, the inbound frame protocol and the broker fanout
// that lets several instances behave as one chat service.
type ChatSocketController struct {
	registry     *realtime.Registry
	chat         *service.ChatService
	auth         *service.AuthorizationService
	reservations port.ReservationService
	broker       brokerport.Broker
	queue        qport.Client // optional offline-notification queue
	log          *logrus.Entry
}

func NewChatSocketController(
	registry *realtime.Registry,
	chatSvc *service.ChatService,
	auth *service.AuthorizationService,
	reservations port.ReservationService,
	broker brokerport.Broker,
	queue qport.Client,
	log *logrus.Entry,
) *ChatSocketController {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ChatSocketController{
		registry:     registry,
		chat:         chatSvc,
		auth:         auth,
		reservations: reservations,
		broker:       broker,
		queue:        queue,
		log:          log,
	}
}

// StartFanout subscribes this instance to the broker. Every published
// envelope, from this instance or a peer, flows back through
// dispatchEnvelope into the local registry.
func (ctl *ChatSocketController) StartFanout(ctx context.Context) error {
	return ctl.broker.Subscribe(ctx, ctl.dispatchEnvelope)
}

// dispatchEnvelope handles one broker callback: decode, then deliver to both
// participants' live connections on this instance. Decode failures are
// logged and dropped; the listener keeps running.
func (ctl *ChatSocketController) dispatchEnvelope(payload []byte) {
	var env chat.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		ctl.log.WithError(err).Error("fanout: undecodable envelope")
		return
	}
	ctl.registry.SendToUser(env.ToUserID, payload)
	ctl.registry.SendToUser(env.FromUserID, payload)
}

// Handle upgrades the HTTP request and runs the connection state machine:
// authenticate, register, flush pending, then route inbound frames until the
// client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			return
		}

		if token == "" {
			ctl.refuse(ws, "missing token")
			return
		}
		userID, err := ctl.auth.Subject(bearerPrefix + token)
		if err != nil {
			ctl.refuse(ws, "invalid token")
			return
		}

		conn := realtime.NewConnection(userID, ws)
		conn.Start()
		ctl.registry.Register(userID, conn)
		defer func() {
			ctl.registry.Unregister(userID, conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		log := ctl.log.WithField("userId", userID)
		log.WithField("connections", ctl.registry.CountForUser(userID)).Info("ws connected")

		sess := &session{userID: userID, bearer: bearerPrefix + token, conn: conn}
		ctl.flushPending(c.Request.Context(), sess)

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadWait))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadWait))
			ctl.handleFrame(c.Request.Context(), sess, data)
		}
	}
}

// flushPending replays queued offline messages over the fresh connection,
// oldest first. One message failing to convert or send is skipped, never
// aborting the loop, and the whole batch is marked delivered afterwards;
// transport delivery is fire-and-forget.
func (ctl *ChatSocketController) flushPending(ctx context.Context, sess *session) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pending, err := ctl.chat.PendingFor(opCtx, sess.userID)
	if err != nil {
		ctl.log.WithField("userId", sess.userID).WithError(err).Error("pending lookup failed")
		return
	}
	if len(pending) == 0 {
		return
	}

	for _, m := range pending {
		payload, err := json.Marshal(ctl.chat.ToEnvelope(m))
		if err != nil {
			ctl.log.WithField("messageId", m.ID).WithError(err).Error("pending message skipped")
			continue
		}
		if err := sess.conn.Send(payload); err != nil {
			ctl.log.WithField("messageId", m.ID).WithError(err).Error("pending send failed")
		}
	}

	if err := ctl.chat.MarkDelivered(opCtx, pending); err != nil {
		ctl.log.WithField("userId", sess.userID).WithError(err).Error("mark delivered failed")
	}
}

// handleFrame routes one inbound frame through the send protocol:
// no-op sentinels, field validation, reservation authorization, encrypted
// persistence, then broker fanout.
func (ctl *ChatSocketController) handleFrame(ctx context.Context, sess *session, payload []byte) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || strings.EqualFold(trimmed, "ping") {
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		ctl.log.WithField("userId", sess.userID).Debug("ignoring non-JSON frame")
		return
	}
	if strings.EqualFold(frame.Type, "ping") {
		return
	}

	to := strings.TrimSpace(frame.ToUserID)
	if to == "" || strings.TrimSpace(frame.Content) == "" {
		ctl.log.WithField("userId", sess.userID).Warn("frame missing required fields")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !ctl.reservations.CanChat(opCtx, sess.bearer, to) {
		ctl.log.WithFields(logrus.Fields{"userId": sess.userID, "toUserId": to}).
			Warn("chat attempt without a valid reservation")
		ctl.sendError(sess, "not authorized to chat")
		return
	}

	threadID := ctl.chat.ThreadID(sess.userID, to)
	if _, err := ctl.chat.EnsureThread(opCtx, sess.userID, to); err != nil {
		ctl.log.WithField("threadId", threadID).WithError(err).Error("ensure thread failed")
		ctl.sendError(sess, "message could not be delivered")
		return
	}

	saved, err := ctl.chat.SaveMessage(opCtx, threadID, sess.userID, to, frame.Content)
	if err != nil {
		ctl.log.WithField("threadId", threadID).WithError(err).Error("save message failed")
		ctl.sendError(sess, "message could not be delivered")
		return
	}

	serialized, err := json.Marshal(ctl.chat.ToEnvelope(*saved))
	if err != nil {
		ctl.log.WithField("messageId", saved.ID).WithError(err).Error("envelope encode failed")
		ctl.sendError(sess, "message could not be delivered")
		return
	}

	if err := ctl.broker.Publish(opCtx, threadID, serialized); err != nil {
		// The message is stored; the recipient catches up on next connect.
		ctl.log.WithField("threadId", threadID).WithError(err).Error("fanout publish failed")
	}

	ctl.notifyIfOffline(opCtx, saved)
}

// notifyIfOffline enqueues a best-effort notification when the recipient has
// no live connection on this instance.
func (ctl *ChatSocketController) notifyIfOffline(ctx context.Context, m *chat.Message) {
	if ctl.queue == nil || ctl.registry.CountForUser(m.ToUserID) > 0 {
		return
	}
	err := task.EnqueueOfflineNotify(ctx, ctl.queue, task.OfflineNotifyPayload{
		MessageID:  m.ID,
		ThreadID:   m.ThreadID,
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
	})
	if err != nil {
		ctl.log.WithField("messageId", m.ID).WithError(err).Debug("offline notify enqueue failed")
	}
}

func (ctl *ChatSocketController) sendError(sess *session, msg string) {
	payload, err := json.Marshal(errorFrame{Error: msg})
	if err != nil {
		return
	}
	if err := sess.conn.Send(payload); err != nil {
		ctl.log.WithField("userId", sess.userID).WithError(err).Debug("error frame send failed")
	}
}

// refuse closes a never-registered socket with a not-acceptable close code.
func (ctl *ChatSocketController) refuse(ws *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeNotAcceptable, reason), deadline)
	_ = ws.Close()
	ctl.log.WithField("reason", reason).Warn("ws connection refused")
}
