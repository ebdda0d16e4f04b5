package sync

import (
	"time"

	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/bus"
	"github.com/tfreitas/roomsync/internal/state"
	"github.com/tfreitas/roomsync/internal/store"
)

const defaultAvatar = "https://placeimg.com/140/140/any"

// Reconciler merges server roster snapshots against the cached room set.
// Rooms are additive-only: a room absent from the latest snapshot is never
// removed, and local overlays (favourite, muted, priority) survive updates.
type Reconciler struct {
	st     *state.Store
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewReconciler creates a new roster reconciler.
func NewReconciler(st *state.Store, db *store.DB, b *bus.Bus, logger *zap.Logger) *Reconciler {
	return &Reconciler{st: st, db: db, bus: b, logger: logger}
}

// Reconcile applies one server roster snapshot. For each reported room:
// absent from cache creates it with a zero-state summary; present with a
// differing participant count or name updates those fields in place;
// otherwise no write happens, so applying the same snapshot twice is a
// no-op the second time.
func (r *Reconciler) Reconcile(descs []state.RoomDescriptor) {
	for _, d := range descs {
		if d.JID == "" {
			continue
		}

		cached, err := r.db.GetRoom(d.JID)
		if err != nil {
			r.logger.Error("failed to read cached room", zap.Error(err), zap.String("jid", d.JID))
			continue
		}

		switch {
		case cached == nil:
			room := state.Room{
				JID:          d.JID,
				Name:         d.Name,
				Participants: d.Participants,
				Avatar:       defaultAvatar,
				Thumbnail:    d.Thumbnail,
				Background:   d.Background,
				CreatedAt:    time.Now().UnixMilli(),
			}
			if err := r.db.UpsertRoom(&room); err != nil {
				r.logger.Error("failed to persist new room", zap.Error(err), zap.String("jid", d.JID))
			}
			r.st.UpsertRoom(room)
			if _, ok := r.st.Summary(d.JID); !ok {
				r.st.SetSummary(d.JID, state.RoomSummary{})
			}
			r.bus.Publish(bus.Event{
				Kind:      "room.created",
				Timestamp: time.Now(),
				Payload:   map[string]string{"room_jid": d.JID},
			})

		case cached.Participants != d.Participants || cached.Name != d.Name:
			updated := *cached
			updated.Name = d.Name
			updated.Participants = d.Participants
			if err := r.db.UpsertRoom(&updated); err != nil {
				r.logger.Error("failed to persist room update", zap.Error(err), zap.String("jid", d.JID))
			}
			r.mergeIntoState(updated)
			r.bus.Publish(bus.Event{
				Kind:      "room.updated",
				Timestamp: time.Now(),
				Payload:   map[string]string{"room_jid": d.JID},
			})

		default:
			// Snapshot matches cache; make sure state carries the room but
			// write nothing.
			r.mergeIntoState(*cached)
		}
	}
}

// mergeIntoState upserts a room into state preserving the in-memory unread
// counter, which is not part of the cached record.
func (r *Reconciler) mergeIntoState(room state.Room) {
	if existing, ok := r.st.Room(room.JID); ok {
		room.Unread = existing.Unread
	}
	r.st.UpsertRoom(room)
}
