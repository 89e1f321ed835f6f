package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/parlor-chat/parlor/internal/domain"
)

// roomImpl is a threadsafe in-memory room. One mutex guards the member
// set, the ledger, the pinned set and the typing set together; fan-out
// runs inside the same critical section as the mutation that produced
// the event, so per-recipient delivery order always equals ledger order.
// It never closes adapter-owned resources: sends are non-blocking and
// slow consumers are reported in PublishResult.Dropped.
type roomImpl struct {
	room *domain.Room

	mu      sync.Mutex
	members map[SessionID]memberEntry
	byName  map[string]SessionID
	ledger  []*domain.Message
	pinned  []*domain.PinnedMessage
	typing  map[string]bool
}

// memberEntry snapshots the display name at join time. Everything under
// the room mutex works off this copy, so a later rename through the
// registry cannot desync the byName index or race the shared user.
type memberEntry struct {
	sess     MemberSession
	username string
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:    room,
		members: make(map[SessionID]memberEntry),
		byName:  make(map[string]SessionID),
		typing:  make(map[string]bool),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *roomImpl) LedgerLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ledger)
}

func (r *roomImpl) MembersSnapshot() []UserView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersSnapshotLocked()
}

func (r *roomImpl) membersSnapshotLocked() []UserView {
	return lo.Map(lo.Values(r.members), func(m memberEntry, _ int) UserView {
		return UserView{Username: m.username, LastSeen: m.sess.Meta().LastSeen}
	})
}

// RecentContext returns value copies of the last n non-system messages,
// oldest first. Callers get a snapshot: later edits to the ledger do not
// reach it.
func (r *roomImpl) RecentContext(n int) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	talk := lo.Filter(r.ledger, func(m *domain.Message, _ int) bool { return !m.IsSystem })
	if len(talk) > n {
		talk = talk[len(talk)-n:]
	}
	return lo.Map(talk, func(m *domain.Message, _ int) domain.Message { return m.Snapshot() })
}

// Join upserts the member record (one record per display name, last
// writer wins on session id), replays the existing ledger and pinned set
// to the requester, then appends and broadcasts the join announcement
// and the refreshed user list.
func (r *roomImpl) Join(sid SessionID, ms MemberSession) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	username := ms.Meta().User.Username
	if prev, ok := r.members[sid]; ok && prev.username != username {
		if r.byName[prev.username] == sid {
			delete(r.byName, prev.username)
		}
		delete(r.typing, prev.username)
	}
	if oldSID, ok := r.byName[username]; ok && oldSID != sid {
		delete(r.members, oldSID)
		delete(r.typing, username)
	}
	r.members[sid] = memberEntry{sess: ms, username: username}
	r.byName[username] = sid
	ms.Meta().LastSeen = time.Now()

	welcome := domain.NewSystemMessage("Welcome to the chat, " + username + "!")
	r.sendLocked(sid, NewMessageEvent(welcome, false), &res)

	for _, m := range r.ledger {
		r.sendLocked(sid, NewHistoryMessageEvent(m), &res)
	}
	for _, p := range r.pinned {
		r.sendLocked(sid, NewPinnedMessageEvent(p), &res)
	}

	joined := domain.NewSystemMessage(username + " has joined the chat")
	r.ledger = append(r.ledger, joined)
	r.fanoutLocked(sid, NewMessageEvent(joined, false), &res)

	r.fanoutLocked("", NewUserListEvent(r.membersSnapshotLocked()), &res)
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("user", username).Msg("member joined")
	return res
}

// Leave removes the member record, appends and broadcasts the leave
// announcement and the recomputed user list. Returns false when the
// session was not a member.
func (r *roomImpl) Leave(sid SessionID) (PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return res, false
	}
	username := m.username
	delete(r.members, sid)
	if r.byName[username] == sid {
		delete(r.byName, username)
	}
	delete(r.typing, username)

	left := domain.NewSystemMessage(username + " has left the chat")
	r.ledger = append(r.ledger, left)
	r.fanoutLocked("", NewMessageEvent(left, false), &res)
	r.fanoutLocked("", NewUserListEvent(r.membersSnapshotLocked()), &res)
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("user", username).Msg("member left")
	return res, true
}

// Post sanitizes, appends and broadcasts a new message. The own-message
// hint is computed per recipient, so the frame is encoded per member.
func (r *roomImpl) Post(sid SessionID, text, image string) (*domain.Message, PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return nil, res, ErrNotMember
	}
	msg := domain.NewMessage(m.username, SanitizeText(text), image)
	r.ledger = append(r.ledger, msg)

	for msid := range r.members {
		r.sendLocked(msid, NewMessageEvent(msg, msid == sid), &res)
	}
	return msg, res, nil
}

// Edit replaces the text of the requester's own message. Not-found and
// ownership mismatch are silent no-ops: the second return is false and
// nothing is broadcast.
func (r *roomImpl) Edit(sid SessionID, id domain.MessageID, text string) (PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return res, false
	}
	msg := r.findLocked(id)
	if msg == nil || msg.Username != m.username {
		return res, false
	}
	msg.Text = SanitizeText(text)
	msg.Edited = true
	r.fanoutLocked("", NewMessageEditedEvent(msg.ID, msg.Text), &res)
	return res, true
}

// Delete removes the requester's own message from the ledger and drops
// any pinned entry for it. Same silent no-op contract as Edit.
func (r *roomImpl) Delete(sid SessionID, id domain.MessageID) (PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return res, false
	}
	idx := -1
	for i, msg := range r.ledger {
		if msg.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 || r.ledger[idx].Username != m.username {
		return res, false
	}
	r.ledger = append(r.ledger[:idx], r.ledger[idx+1:]...)
	r.pinned = lo.Filter(r.pinned, func(p *domain.PinnedMessage, _ int) bool { return p.Message.ID != id })

	r.fanoutLocked("", NewMessageDeletedEvent(id), &res)
	return res, true
}

func (r *roomImpl) React(sid SessionID, id domain.MessageID, symbol string) (int, PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	if _, ok := r.members[sid]; !ok {
		return 0, res, ErrNotMember
	}
	msg := r.findLocked(id)
	if msg == nil {
		return 0, res, ErrMessageNotFound
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string]int)
	}
	msg.Reactions[symbol]++
	count := msg.Reactions[symbol]

	r.fanoutLocked("", NewReactionEvent(id, symbol, count), &res)
	return count, res, nil
}

func (r *roomImpl) Pin(sid SessionID, id domain.MessageID) (*domain.PinnedMessage, PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return nil, res, ErrNotMember
	}
	msg := r.findLocked(id)
	if msg == nil {
		return nil, res, ErrMessageNotFound
	}
	for _, p := range r.pinned {
		if p.Message.ID == id {
			return nil, res, ErrAlreadyPinned
		}
	}
	entry := domain.NewPinnedMessage(msg, m.username)
	r.pinned = append(r.pinned, entry)

	r.fanoutLocked("", NewPinnedMessageEvent(entry), &res)
	return entry, res, nil
}

// MarkRead adds the requester to the message's read-by set. A repeated
// call is idempotent: no mutation, no broadcast, no error.
func (r *roomImpl) MarkRead(sid SessionID, id domain.MessageID) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return res, ErrNotMember
	}
	msg := r.findLocked(id)
	if msg == nil {
		return res, ErrMessageNotFound
	}
	username := m.username
	if lo.Contains(msg.ReadBy, username) {
		return res, nil
	}
	msg.ReadBy = append(msg.ReadBy, username)

	r.fanoutLocked("", NewMessageReadByEvent(id, username), &res)
	return res, nil
}

// SetTyping is best-effort; the requester never sees their own typing
// indicator.
func (r *roomImpl) SetTyping(sid SessionID, isTyping bool) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return res
	}
	username := m.username
	if isTyping {
		r.typing[username] = true
	} else {
		delete(r.typing, username)
	}
	r.fanoutLocked(sid, NewTypingEvent(username, isTyping), &res)
	return res
}

// ClearHistory irreversibly empties the ledger and the pinned set, then
// appends a system message naming who cleared so late joiners see it.
func (r *roomImpl) ClearHistory(sid SessionID) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}

	m, ok := r.members[sid]
	if !ok {
		return res
	}
	username := m.username
	r.ledger = nil
	r.pinned = nil

	cleared := domain.NewSystemMessage(username + " cleared the chat history")
	r.ledger = append(r.ledger, cleared)
	r.fanoutLocked("", NewMessageEvent(cleared, false), &res)
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("user", username).Msg("history cleared")
	return res
}

func (r *roomImpl) findLocked(id domain.MessageID) *domain.Message {
	for _, m := range r.ledger {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// sendLocked delivers one event to one member without blocking; a full
// queue marks the session dropped.
func (r *roomImpl) sendLocked(sid SessionID, v any, res *PublishResult) {
	m, ok := r.members[sid]
	if !ok {
		return
	}
	frame, err := EncodeEvent(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("encode event")
		return
	}
	if err := m.sess.Signal().TrySend(frame); err != nil {
		res.Dropped = append(res.Dropped, sid)
		return
	}
	res.SentTo++
}

// fanoutLocked delivers one event to every member except the excluded
// session (empty SessionID excludes nobody).
func (r *roomImpl) fanoutLocked(except SessionID, v any, res *PublishResult) {
	frame, err := EncodeEvent(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("encode event")
		return
	}
	for sid, m := range r.members {
		if sid == except {
			continue
		}
		if err := m.sess.Signal().TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
}
