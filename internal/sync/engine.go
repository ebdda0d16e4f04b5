// Package sync implements the admission gate and reconciliation logic that
// keep the in-memory chat state and the cache consistent under duplicate and
// out-of-order delivery.
package sync

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/bus"
	"github.com/tfreitas/roomsync/internal/metrics"
	"github.com/tfreitas/roomsync/internal/state"
	"github.com/tfreitas/roomsync/internal/store"
)

// Verdict is the outcome of admitting a message.
type Verdict int

const (
	Accepted Verdict = iota
	Duplicate
	Blocked
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Blocked:
		return "blocked"
	}
	return "unknown"
}

// Engine handles idempotent ingestion of messages into state and cache, and
// owns the archive-completion trigger for bulk summary rebuilds. All inbound
// mutation entry points are invoked from the single dispatch loop; the UI
// entry points (SubmitOutbound, MarkRoomRead, SetMuted) may run concurrently
// with it.
type Engine struct {
	st     *state.Store
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger

	mu           sync.Mutex
	archivesDone int
}

// NewEngine creates a new sync engine.
func NewEngine(st *state.Store, db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		st:     st,
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// WarmUp re-derives in-memory state from the cache. Called once at startup
// before the transport connects, so a crash mid-batch recovers to the last
// persisted view.
func (e *Engine) WarmUp() error {
	rooms, err := e.db.ListRooms()
	if err != nil {
		return err
	}
	for _, r := range rooms {
		e.st.UpsertRoom(r)
	}

	msgs, err := e.db.AllMessages()
	if err != nil {
		return err
	}
	for _, m := range msgs {
		e.st.AddMessage(m)
	}

	raw, err := e.db.GetSetting(store.SettingRoomSummaries)
	if err != nil {
		return err
	}
	if raw != "" {
		var summaries map[string]state.RoomSummary
		if err := json.Unmarshal([]byte(raw), &summaries); err == nil {
			e.st.ReplaceSummaries(summaries)
		}
	}

	e.logger.Info("state warmed up from cache",
		zap.Int("rooms", len(rooms)),
		zap.Int("messages", len(msgs)))
	return nil
}

// Admit runs the dedup and blocklist gate on a normalized message. On
// Accepted the message is appended to state in arrival order and persisted;
// system messages additionally apply their settlement patch. Blocked and
// Duplicate are terminal no-ops.
func (e *Engine) Admit(m state.Message) Verdict {
	v := e.admit(m)
	metrics.AdmissionsTotal.WithLabelValues(v.String()).Inc()
	return v
}

func (e *Engine) admit(m state.Message) Verdict {
	// The blocklist filter runs before dedup/insert: a blocked sender's
	// message must never reach the message set or the cache.
	if e.st.IsBlocked(m.Sender.ID) {
		return Blocked
	}
	if !e.st.AddMessage(m) {
		return Duplicate
	}

	// Cache append failure is non-fatal: in-memory state is already
	// updated and the cache self-heals on the next full refresh.
	if err := e.db.InsertMessage(&m); err != nil {
		metrics.CacheWriteFailures.Inc()
		e.logger.Error("failed to persist message", zap.Error(err), zap.String("msg_id", m.ID))
	}

	if m.IsSystem && m.ReceiverMessageID != "" {
		e.applySettlement(m)
	}
	return Accepted
}

// AdmitLive admits a live message and, when accepted, patches the room
// summary preview and unread counter incrementally.
func (e *Engine) AdmitLive(m state.Message) Verdict {
	v := e.Admit(m)
	if v != Accepted {
		return v
	}

	e.st.PatchSummary(m.RoomJID, m.Sender.Name, m.Text, m.Timestamp)
	e.st.IncrementUnread(m.RoomJID)
	e.persistSummaries()

	e.bus.Publish(bus.Event{
		Kind:      "message.upserted",
		Timestamp: time.Now(),
		Payload: map[string]string{
			"room_jid": m.RoomJID,
			"msg_id":   m.ID,
		},
	})
	return v
}

// AdmitArchived admits a history-replay message. Summaries are not patched
// per message; the bulk rebuild runs once all archives complete.
func (e *Engine) AdmitArchived(m state.Message) Verdict {
	return e.Admit(m)
}

// applySettlement patches the referenced message with late-arriving economic
// metadata. A missing reference is an anomaly, not an error: log and skip.
func (e *Engine) applySettlement(m state.Message) {
	ref := m.ReceiverMessageID

	if m.ContractAddress != "" {
		if !e.st.MarkWrapped(ref, m.NFTID, m.ContractAddress) {
			metrics.MissingSettlementRefs.Inc()
			e.logger.Warn("wrap patch references unknown message",
				zap.String("receiver_msg_id", ref), zap.String("msg_id", m.ID))
		} else if err := e.db.MarkWrapped(ref, m.NFTID, m.ContractAddress); err != nil {
			metrics.CacheWriteFailures.Inc()
			e.logger.Error("failed to persist wrap patch", zap.Error(err), zap.String("receiver_msg_id", ref))
		}
	}

	if m.TokenAmount != 0 {
		if !e.st.AddTokenAmount(ref, m.TokenAmount) {
			metrics.MissingSettlementRefs.Inc()
			e.logger.Warn("token patch references unknown message",
				zap.String("receiver_msg_id", ref), zap.String("msg_id", m.ID))
			return
		}
		if err := e.db.AddTokenAmount(ref, m.TokenAmount); err != nil {
			metrics.CacheWriteFailures.Inc()
			e.logger.Error("failed to persist token patch", zap.Error(err), zap.String("receiver_msg_id", ref))
		}
		e.bus.Publish(bus.Event{
			Kind:      "message.patched",
			Timestamp: time.Now(),
			Payload: map[string]string{
				"msg_id": ref,
			},
		})
	}
}

// ArchiveFetchComplete records one finished per-room archive round. When the
// completed count reaches the room-set size the bulk summary rebuild fires.
// The target is recomputed here, at completion time, so rooms added by a
// mid-flight roster reconciliation move the target instead of firing early.
func (e *Engine) ArchiveFetchComplete() {
	e.mu.Lock()
	e.archivesDone++
	done := e.archivesDone
	e.mu.Unlock()

	if done >= e.st.RoomCount() {
		e.RebuildSummaries()
	}
}

// ResetArchiveProgress clears the completion counter. Called on each Online
// transition before the archive fan-out.
func (e *Engine) ResetArchiveProgress() {
	e.mu.Lock()
	e.archivesDone = 0
	e.mu.Unlock()
}

// RebuildSummaries recomputes every room's summary as a pure function of
// the message and room sets. The most recent message is chosen by
// timestamp, not insertion order. A room with no loaded messages keeps its
// previously cached summary untouched so partial loads never erase state.
func (e *Engine) RebuildSummaries() {
	msgs := e.st.Messages()

	latest := make(map[string]state.Message)
	for _, m := range msgs {
		if prev, ok := latest[m.RoomJID]; !ok || m.Timestamp > prev.Timestamp {
			latest[m.RoomJID] = m
		}
	}

	rebuilt := make(map[string]state.RoomSummary)
	for _, r := range e.st.Rooms() {
		prev, _ := e.st.Summary(r.JID)
		m, ok := latest[r.JID]
		if !ok {
			rebuilt[r.JID] = prev
			continue
		}
		rebuilt[r.JID] = state.RoomSummary{
			LastUserName:  m.Sender.Name,
			LastUserText:  m.Text,
			LastMessageAt: m.Timestamp,
			Muted:         prev.Muted,
		}
	}

	e.st.ReplaceSummaries(rebuilt)
	e.persistSummaries()
	metrics.SummaryRebuilds.Inc()

	e.bus.Publish(bus.Event{
		Kind:      "room.summaries_rebuilt",
		Timestamp: time.Now(),
		Payload:   len(rebuilt),
	})
}

func (e *Engine) persistSummaries() {
	raw, err := json.Marshal(e.st.Summaries())
	if err != nil {
		return
	}
	if err := e.db.PutSetting(store.SettingRoomSummaries, string(raw)); err != nil {
		metrics.CacheWriteFailures.Inc()
		e.logger.Error("failed to persist room summaries", zap.Error(err))
	}
}

// SetBlocklist replaces the blocked sender set from a blocklist snapshot.
func (e *Engine) SetBlocklist(senderIDs []string) {
	e.st.SetBlocklist(senderIDs)
	e.bus.Publish(bus.Event{
		Kind:      "blocklist.updated",
		Timestamp: time.Now(),
		Payload:   len(senderIDs),
	})
}

// SubmitOutbound queues an outgoing message for the sender loop and returns
// the client message id.
func (e *Engine) SubmitOutbound(roomJID, text string) (string, error) {
	clientID := uuid.New().String()
	if err := e.db.QueueOutbox(clientID, roomJID, text); err != nil {
		return "", err
	}
	return clientID, nil
}

// MarkRoomRead clears the unread counter for a room.
func (e *Engine) MarkRoomRead(roomJID string) {
	e.st.ClearUnread(roomJID)
	e.bus.Publish(bus.Event{
		Kind:      "room.updated",
		Timestamp: time.Now(),
		Payload:   map[string]string{"room_jid": roomJID},
	})
}

// SetMuted flips the local-only muted overlay and persists it.
func (e *Engine) SetMuted(roomJID string, muted bool) error {
	e.st.SetMuted(roomJID, muted)
	if err := e.db.SetRoomMuted(roomJID, muted); err != nil {
		metrics.CacheWriteFailures.Inc()
		return err
	}
	e.persistSummaries()
	e.bus.Publish(bus.Event{
		Kind:      "room.updated",
		Timestamp: time.Now(),
		Payload:   map[string]string{"room_jid": roomJID},
	})
	return nil
}
