// Package outbox drains the durable outbound queue through the transport.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/bus"
	"github.com/tfreitas/roomsync/internal/stanza"
	"github.com/tfreitas/roomsync/internal/store"
)

// StanzaSender posts one stanza to the server.
type StanzaSender interface {
	Send(ctx context.Context, n *stanza.Node) error
}

// GroupchatBuilder builds an outbound room message stanza around a client
// id.
type GroupchatBuilder interface {
	Groupchat(roomJID, clientID, text string) *stanza.Node
}

// Sender polls the outbox and posts queued messages as groupchat stanzas.
// The canonical copy of a sent message arrives back through the inbound
// pipeline with its server-stamped id; the outbox only tracks delivery of
// the request itself.
type Sender struct {
	db      *store.DB
	tr      StanzaSender
	builder GroupchatBuilder
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewSender creates an outbox sender.
func NewSender(db *store.DB, tr StanzaSender, builder GroupchatBuilder, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:      db,
		tr:      tr,
		builder: builder,
		bus:     b,
		logger:  logger,
	}
}

// Start begins polling the outbox for queued messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending sends every queued entry once. Failed entries are marked
// and not retried until requeued.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		s.bus.Publish(bus.Event{
			Kind:      "message.sending",
			Timestamp: time.Now(),
			Payload:   map[string]string{"room_jid": entry.RoomJID, "client_msg_id": entry.ClientMsgID},
		})

		n := s.builder.Groupchat(entry.RoomJID, entry.ClientMsgID, entry.Body)
		if err := s.tr.Send(ctx, n); err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.bus.Publish(bus.Event{
				Kind:      "message.send_failed",
				Timestamp: time.Now(),
				Payload: map[string]string{
					"client_msg_id": entry.ClientMsgID,
					"error":         err.Error(),
				},
			})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}

		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("room_jid", entry.RoomJID))
		s.bus.Publish(bus.Event{
			Kind:      "message.send_ack",
			Timestamp: time.Now(),
			Payload:   map[string]string{"client_msg_id": entry.ClientMsgID},
		})
	}
}
