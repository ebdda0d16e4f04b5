package xmpp

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/bus"
	"github.com/tfreitas/roomsync/internal/metrics"
	"github.com/tfreitas/roomsync/internal/stanza"
	"github.com/tfreitas/roomsync/internal/state"
	"github.com/tfreitas/roomsync/internal/status"
	"github.com/tfreitas/roomsync/internal/store"
	intsync "github.com/tfreitas/roomsync/internal/sync"
)

// Handler owns the inbound pipeline: it reads the transport's stanza
// stream, classifies each stanza, and applies it to the sync core. Stanzas
// are processed strictly one at a time in arrival order; nothing here
// spawns per-stanza goroutines.
type Handler struct {
	tr         Transport
	req        *Requests
	engine     *intsync.Engine
	reconciler *intsync.Reconciler
	st         *state.Store
	db         *store.DB
	bus        *bus.Bus
	machine    *status.Machine
	logger     *zap.Logger

	conferenceDomain string
	defaultRooms     []string
}

// HandlerParams groups the handler's collaborators.
type HandlerParams struct {
	Transport        Transport
	Requests         *Requests
	Engine           *intsync.Engine
	Reconciler       *intsync.Reconciler
	State            *state.Store
	DB               *store.DB
	Bus              *bus.Bus
	Machine          *status.Machine
	Logger           *zap.Logger
	ConferenceDomain string
	DefaultRooms     []string
}

// NewHandler creates the inbound pipeline.
func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		tr:               p.Transport,
		req:              p.Requests,
		engine:           p.Engine,
		reconciler:       p.Reconciler,
		st:               p.State,
		db:               p.DB,
		bus:              p.Bus,
		machine:          p.Machine,
		logger:           p.Logger,
		conferenceDomain: p.ConferenceDomain,
		defaultRooms:     p.DefaultRooms,
	}
}

// Run consumes the transport until the context is cancelled or the
// transport closes its streams.
func (h *Handler) Run(ctx context.Context) {
	stanzas := h.tr.Stanzas()
	signals := h.tr.Signals()
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			h.handleSignal(ctx, sig)
		case n, ok := <-stanzas:
			if !ok {
				return
			}
			h.Dispatch(ctx, n)
		}
	}
}

func (h *Handler) handleSignal(ctx context.Context, sig Signal) {
	switch sig.Kind {
	case SignalConnected:
		h.logger.Info("gateway session established")
		_ = h.machine.Transition(status.Online)
		h.onOnline(ctx)
	case SignalDisconnected:
		h.logger.Warn("gateway session lost",
			zap.Error(sig.Err),
			zap.Int("pending_requests", h.req.PendingCount()))
		_ = h.machine.Transition(status.Reconnecting)
		h.bus.Publish(bus.Event{Kind: "session.disconnected", Timestamp: time.Now()})
	}
}

// onOnline runs the post-connect fan-out: announce presence, subscribe the
// configured default rooms, then request the roster, blocklist and own
// vCard. Archive fetches wait for the roster response so the completion
// target counts real rooms.
func (h *Handler) onOnline(ctx context.Context) {
	h.engine.ResetArchiveProgress()

	h.send(ctx, h.req.AvailablePresence())
	for _, room := range h.defaultRooms {
		h.send(ctx, h.req.Subscribe(room))
		h.send(ctx, h.req.RoomPresence(room))
	}
	h.send(ctx, h.req.Roster(h.conferenceDomain))
	h.send(ctx, h.req.Blocklist())
	h.send(ctx, h.req.OwnVCard())

	h.bus.Publish(bus.Event{Kind: "session.online", Timestamp: time.Now()})
}

// Dispatch applies one classified stanza to the sync core.
func (h *Handler) Dispatch(ctx context.Context, n *stanza.Node) {
	cat := stanza.Classify(n)
	metrics.StanzasTotal.WithLabelValues(cat.String()).Inc()

	if id := n.ID(); id != "" {
		h.req.Acknowledge(id)
	}

	switch cat {
	case stanza.RoomRosterSnapshot:
		h.handleRoster(ctx, n)

	case stanza.ArchivedMessage:
		h.admit(n, stanza.Archived)

	case stanza.ArchiveBatchComplete:
		h.engine.ArchiveFetchComplete()

	case stanza.PaginatedArchiveComplete:
		h.st.SetLoadingEarlier(false)
		h.bus.Publish(bus.Event{Kind: "message.earlier_loaded", Timestamp: time.Now()})

	case stanza.LiveMessage:
		h.admit(n, stanza.Live)

	case stanza.ComposingStart:
		h.handleComposing(n, true)

	case stanza.ComposingStop:
		h.handleComposing(n, false)

	case stanza.RolePresence:
		if roomJID, role, ok := ParseRolePresence(n); ok {
			h.st.SetRole(roomJID, role)
			h.bus.Publish(bus.Event{Kind: "room.role", Timestamp: time.Now(), Payload: map[string]string{"room_jid": roomJID, "role": role}})
		}

	case stanza.VCardSelf:
		h.handleOwnVCard(ctx, n)

	case stanza.VCardOther:
		h.bus.Publish(bus.Event{Kind: "vcard.other", Timestamp: time.Now(), Payload: ParseVCard(n)})

	case stanza.BlocklistSnapshot:
		h.engine.SetBlocklist(ParseBlocklist(n))

	case stanza.BlocklistMutationAck:
		// Re-fetch rather than patching locally; the server's list wins.
		h.send(ctx, h.req.Blocklist())

	case stanza.RoomCreatedAck, stanza.RoomImageAck:
		h.send(ctx, h.req.Roster(h.conferenceDomain))

	case stanza.RoomMemberInfo:
		h.st.SetMembers(ParseMembers(n))
		h.bus.Publish(bus.Event{Kind: "room.members", Timestamp: time.Now()})

	case stanza.RoomInvite:
		h.handleInvite(ctx, n)

	case stanza.NewSubscription:
		h.handleNewSubscription(ctx, n)

	case stanza.ProtocolError:
		h.logger.Warn("protocol error stanza",
			zap.String("id", n.ID()),
			zap.String("from", n.From()))
		h.bus.Publish(bus.Event{Kind: "session.protocol_error", Timestamp: time.Now(), Payload: n.ID()})

	default:
		metrics.DroppedTotal.WithLabelValues("unknown").Inc()
		h.logger.Debug("dropping unclassified stanza",
			zap.String("name", n.Name),
			zap.String("id", n.ID()))
	}
}

func (h *Handler) admit(n *stanza.Node, mode stanza.Mode) {
	msg, err := stanza.Normalize(n, mode)
	if err != nil {
		if errors.Is(err, stanza.ErrMalformed) {
			metrics.DroppedTotal.WithLabelValues("malformed").Inc()
			h.logger.Warn("dropping malformed message", zap.Error(err), zap.String("id", n.ID()))
			return
		}
		h.logger.Error("normalize failed", zap.Error(err))
		return
	}
	if mode == stanza.Live {
		h.engine.AdmitLive(msg)
	} else {
		h.engine.AdmitArchived(msg)
	}
}

// handleRoster reconciles the room set, then announces presence in each
// room and requests its archive. The engine's completion counter targets
// the room count as of completion time, so rooms created between here and
// the last fin are safe.
func (h *Handler) handleRoster(ctx context.Context, n *stanza.Node) {
	descs := ParseRoster(n)
	h.reconciler.Reconcile(descs)

	for _, d := range descs {
		h.send(ctx, h.req.RoomPresence(d.JID))
		h.send(ctx, h.req.Archive(d.JID))
	}
}

func (h *Handler) handleComposing(n *stanza.Node, active bool) {
	c, ok := ParseComposing(n, active)
	if !ok {
		metrics.DroppedTotal.WithLabelValues("malformed").Inc()
		return
	}
	h.st.SetComposing(c)
	h.bus.Publish(bus.Event{Kind: "room.composing", Timestamp: time.Now(), Payload: c})
}

// handleOwnVCard stores the profile from the server, or publishes the
// configured defaults when the server holds an empty card.
func (h *Handler) handleOwnVCard(ctx context.Context, n *stanza.Node) {
	card := ParseVCard(n)
	if card.Empty {
		id := h.req.identity
		h.send(ctx, h.req.PublishVCard(id.DisplayName, id.AvatarURL, ""))
		return
	}

	h.putSetting(store.SettingProfileName, card.Name)
	h.putSetting(store.SettingProfilePhoto, card.PhotoURL)
	h.putSetting(store.SettingProfileDesc, card.Description)
	h.bus.Publish(bus.Event{Kind: "vcard.self", Timestamp: time.Now(), Payload: card})
}

func (h *Handler) putSetting(key, value string) {
	if err := h.db.PutSetting(key, value); err != nil {
		metrics.CacheWriteFailures.Inc()
		h.logger.Error("failed to cache profile setting", zap.Error(err), zap.String("key", key))
	}
}

// handleInvite joins the invited room and refreshes the roster so the new
// room gets reconciled and archived.
func (h *Handler) handleInvite(ctx context.Context, n *stanza.Node) {
	roomJID := stanza.InviteRoomJID(n)
	if roomJID == "" {
		metrics.DroppedTotal.WithLabelValues("malformed").Inc()
		return
	}
	h.send(ctx, h.req.Subscribe(roomJID))
	h.send(ctx, h.req.RoomPresence(roomJID))
	h.send(ctx, h.req.Roster(h.conferenceDomain))
	h.bus.Publish(bus.Event{Kind: "room.invited", Timestamp: time.Now(), Payload: roomJID})
}

// handleNewSubscription announces presence in the room; if it is not
// cached yet, a roster refresh pulls it in.
func (h *Handler) handleNewSubscription(ctx context.Context, n *stanza.Node) {
	roomJID := n.From()
	if roomJID == "" {
		return
	}
	h.send(ctx, h.req.RoomPresence(roomJID))
	if _, ok := h.st.Room(roomJID); !ok {
		h.send(ctx, h.req.Roster(h.conferenceDomain))
	}
}

// LoadEarlier requests the page of history before the oldest loaded message
// of a room. A no-op while a page is already in flight or when the room has
// no loaded message to anchor on. The in-flight flag clears when the
// paginated fin arrives.
func (h *Handler) LoadEarlier(ctx context.Context, roomJID string) error {
	if h.st.LoadingEarlier() {
		return nil
	}
	oldest, ok := h.st.OldestMessage(roomJID)
	if !ok {
		return nil
	}
	h.st.SetLoadingEarlier(true)
	if err := h.tr.Send(ctx, h.req.EarlierArchive(roomJID, oldest.ID)); err != nil {
		h.st.SetLoadingEarlier(false)
		return err
	}
	return nil
}

// Block asks the server to add a sender to the blocklist. The local list
// updates when the mutation ack triggers a re-fetch.
func (h *Handler) Block(ctx context.Context, senderJID string) error {
	return h.tr.Send(ctx, h.req.Block(senderJID))
}

// Unblock asks the server to remove a sender from the blocklist.
func (h *Handler) Unblock(ctx context.Context, senderJID string) error {
	return h.tr.Send(ctx, h.req.Unblock(senderJID))
}

// RequestMemberInfo asks for a room's member listing.
func (h *Handler) RequestMemberInfo(ctx context.Context, roomJID string) error {
	return h.tr.Send(ctx, h.req.MemberInfo(roomJID))
}

// RequestVCard asks for another user's profile card.
func (h *Handler) RequestVCard(ctx context.Context, userJID string) error {
	return h.tr.Send(ctx, h.req.OtherVCard(userJID))
}

// NotifyComposing announces the local user's typing state in a room.
func (h *Handler) NotifyComposing(ctx context.Context, roomJID string, active bool) error {
	return h.tr.Send(ctx, h.req.Composing(roomJID, active))
}

func (h *Handler) send(ctx context.Context, n *stanza.Node) {
	if err := h.tr.Send(ctx, n); err != nil {
		h.logger.Warn("send failed", zap.Error(err), zap.String("id", n.ID()))
	}
}
