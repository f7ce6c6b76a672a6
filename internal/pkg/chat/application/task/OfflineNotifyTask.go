package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	qport "chatwire/internal/infrastructure/queue/port"
	"chatwire/internal/pkg/chat/application/service"
)

// OfflineNotifyTaskType is the queue task name for notifying a recipient who
// had no live connection when a message arrived.
const OfflineNotifyTaskType = "chat:offline_notify"

// OfflineNotifyPayload is the JSON payload transported via the queue,
// decoupled from the domain types.
type OfflineNotifyPayload struct {
	MessageID  string `json:"messageId"`
	ThreadID   string `json:"threadId"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

// EnqueueOfflineNotify schedules a best-effort offline notification. The
// UniqueTTL collapses bursts of messages to the same recipient into one
// pending task.
func EnqueueOfflineNotify(ctx context.Context, q qport.Client, p OfflineNotifyPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = q.Enqueue(ctx, qport.Task{Type: OfflineNotifyTaskType, Payload: b}, qport.EnqueueOption{
		Queue:     "chat",
		MaxRetry:  5,
		UniqueTTL: time.Minute,
	})
	return err
}

// RegisterOfflineNotify binds the offline-notification handler to the worker
// server. The handler summarizes the recipient's backlog; a downstream push
// integration consumes the emitted record.
func RegisterOfflineNotify(srv qport.Server, chatSvc *service.ChatService, log *logrus.Entry) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	srv.Register(OfflineNotifyTaskType, func(ctx context.Context, t qport.Task) error {
		var p OfflineNotifyPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// Malformed payload: retrying cannot help.
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pending, err := chatSvc.PendingFor(ctx, p.ToUserID)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"toUserId":  p.ToUserID,
			"threadId":  p.ThreadID,
			"messageId": p.MessageID,
			"pending":   len(pending),
		}).Info("offline recipient has undelivered messages")
		return nil
	})
}
