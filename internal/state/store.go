package state

import "sync"

// Store owns all in-memory chat state. External readers get copies through
// snapshot accessors; all writes go through named mutators. The dispatch
// loop is the only writer during normal operation, but the mutex keeps
// snapshot readers (UI collaborator) safe at any time.
type Store struct {
	mu sync.RWMutex

	messages []Message
	msgIndex map[string]int // message ID -> position in messages

	rooms     map[string]Room
	roomOrder []string

	summaries map[string]RoomSummary
	roles     map[string]string
	blocklist map[string]struct{}

	composing      Composing
	members        []MemberInfo
	loadingEarlier bool
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{
		msgIndex:  make(map[string]int),
		rooms:     make(map[string]Room),
		summaries: make(map[string]RoomSummary),
		roles:     make(map[string]string),
		blocklist: make(map[string]struct{}),
	}
}

// HasMessage reports whether a message with the given ID is already present.
func (s *Store) HasMessage(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.msgIndex[id]
	return ok
}

// AddMessage appends a message in arrival order. Returns false if a message
// with the same ID already exists (the set is never mutated in that case).
func (s *Store) AddMessage(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgIndex[m.ID]; ok {
		return false
	}
	s.msgIndex[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)
	return true
}

// Messages returns a copy of the message set in arrival order. Consumers
// needing chronological order must sort by Timestamp; archived batches and
// live messages can interleave out of timestamp order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message returns the message with the given ID, or false.
func (s *Store) Message(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.msgIndex[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i], true
}

// OldestMessage returns the room's message with the smallest timestamp, or
// false when no message of that room is loaded. Pagination anchors on it.
func (s *Store) OldestMessage(roomJID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest Message
	found := false
	for _, m := range s.messages {
		if m.RoomJID != roomJID {
			continue
		}
		if !found || m.Timestamp < oldest.Timestamp {
			oldest = m
			found = true
		}
	}
	return oldest, found
}

// AddTokenAmount increments the token amount of the referenced message.
// Returns false if no such message exists.
func (s *Store) AddTokenAmount(id string, delta int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.msgIndex[id]
	if !ok {
		return false
	}
	s.messages[i].TokenAmount += delta
	return true
}

// MarkWrapped attaches NFT wrap metadata to the referenced message.
// Returns false if no such message exists.
func (s *Store) MarkWrapped(id, nftID, contractAddress string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.msgIndex[id]
	if !ok {
		return false
	}
	s.messages[i].NFTID = nftID
	s.messages[i].ContractAddress = contractAddress
	return true
}

// UpsertRoom inserts or replaces a room record keyed by JID.
func (s *Store) UpsertRoom(r Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.JID]; !ok {
		s.roomOrder = append(s.roomOrder, r.JID)
	}
	s.rooms[r.JID] = r
}

// Room returns the room with the given JID, or false.
func (s *Store) Room(jid string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[jid]
	return r, ok
}

// Rooms returns a copy of the room set in insertion order.
func (s *Store) Rooms() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Room, 0, len(s.roomOrder))
	for _, jid := range s.roomOrder {
		out = append(out, s.rooms[jid])
	}
	return out
}

// RoomCount returns the current number of rooms. The archive-completion
// trigger compares against this at completion time, not request time, so
// rooms added mid-flight move the target instead of firing early.
func (s *Store) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// IncrementUnread bumps the unread counter for a room.
func (s *Store) IncrementUnread(jid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[jid]; ok {
		r.Unread++
		s.rooms[jid] = r
	}
}

// ClearUnread resets the unread counter for a room.
func (s *Store) ClearUnread(jid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[jid]; ok {
		r.Unread = 0
		s.rooms[jid] = r
	}
}

// SetMuted sets the local-only muted overlay on a room and its summary.
func (s *Store) SetMuted(jid string, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[jid]; ok {
		r.Muted = muted
		s.rooms[jid] = r
	}
	if sum, ok := s.summaries[jid]; ok {
		sum.Muted = muted
		s.summaries[jid] = sum
	}
}

// SetSummary replaces the summary entry for a room.
func (s *Store) SetSummary(jid string, sum RoomSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[jid] = sum
}

// PatchSummary merges non-zero preview fields into a room's summary,
// preserving the mute flag.
func (s *Store) PatchSummary(jid string, lastUserName, lastUserText string, lastMessageAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := s.summaries[jid]
	sum.LastUserName = lastUserName
	sum.LastUserText = lastUserText
	sum.LastMessageAt = lastMessageAt
	s.summaries[jid] = sum
}

// Summary returns the summary for a room, or false.
func (s *Store) Summary(jid string) (RoomSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[jid]
	return sum, ok
}

// Summaries returns a copy of the summary map.
func (s *Store) Summaries() map[string]RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]RoomSummary, len(s.summaries))
	for k, v := range s.summaries {
		out[k] = v
	}
	return out
}

// ReplaceSummaries swaps in a fully rebuilt summary map.
func (s *Store) ReplaceSummaries(m map[string]RoomSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = make(map[string]RoomSummary, len(m))
	for k, v := range m {
		s.summaries[k] = v
	}
}

// SetRole upserts the local user's role in a room. Last write wins.
func (s *Store) SetRole(roomJID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[roomJID] = role
}

// Role returns the local user's role in a room, or empty.
func (s *Store) Role(roomJID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[roomJID]
}

// Roles returns a copy of the role assignment map.
func (s *Store) Roles() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.roles))
	for k, v := range s.roles {
		out[k] = v
	}
	return out
}

// SetBlocklist replaces the blocked sender set.
func (s *Store) SetBlocklist(senderIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocklist = make(map[string]struct{}, len(senderIDs))
	for _, id := range senderIDs {
		s.blocklist[id] = struct{}{}
	}
}

// IsBlocked reports whether a sender is on the blocklist.
func (s *Store) IsBlocked(senderID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocklist[senderID]
	return ok
}

// Blocklist returns a copy of the blocked sender set.
func (s *Store) Blocklist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.blocklist))
	for id := range s.blocklist {
		out = append(out, id)
	}
	return out
}

// SetComposing overwrites the singleton composing state.
func (s *Store) SetComposing(c Composing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composing = c
}

// Composing returns the current composing snapshot.
func (s *Store) Composing() Composing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.composing
}

// SetMembers replaces the latest room member listing.
func (s *Store) SetMembers(members []MemberInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make([]MemberInfo, len(members))
	copy(s.members, members)
}

// Members returns a copy of the latest room member listing.
func (s *Store) Members() []MemberInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MemberInfo, len(s.members))
	copy(out, s.members)
	return out
}

// SetLoadingEarlier toggles the load-earlier pagination flag.
func (s *Store) SetLoadingEarlier(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingEarlier = v
}

// LoadingEarlier reports whether an earlier-page archive fetch is in flight.
func (s *Store) LoadingEarlier() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadingEarlier
}
