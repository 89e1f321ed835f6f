package core

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/parlor-chat/parlor/internal/domain"
)

// fakeConn records every frame; a non-negative limit simulates a full
// outbound queue.
type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	limit  int
}

func newFakeConn() *fakeConn { return &fakeConn{limit: -1} }

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit >= 0 && len(c.frames) >= c.limit {
		return errors.New("queue full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) eventsOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.events(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestRoom(name string) RoomService {
	return NewRoomService(&domain.Room{Name: domain.RoomName(name)})
}

func addMember(r RoomService, name string) (SessionID, *fakeConn) {
	conn := newFakeConn()
	u := &domain.User{ID: domain.UserID(name), Username: name}
	sid := SessionID("sid-" + name)
	r.Join(sid, NewMemberSession(domain.NewMember(u), conn))
	return sid, conn
}

func TestRoom_JoinWelcomeAndAnnouncement(t *testing.T) {
	room := newTestRoom("lobby")

	aliceSID, alice := addMember(room, "alice")
	_ = aliceSID

	msgs := alice.eventsOfType(t, EvMessage)
	require.Len(t, msgs, 1, "requester sees only the welcome, not their own join announcement")
	require.Equal(t, "Welcome to the chat, alice!", msgs[0]["text"])
	require.Equal(t, true, msgs[0]["isSystem"])

	lists := alice.eventsOfType(t, EvUserList)
	require.Len(t, lists, 1)

	_, bob := addMember(room, "bob")
	joinMsgs := alice.eventsOfType(t, EvMessage)
	require.Len(t, joinMsgs, 2)
	require.Equal(t, "bob has joined the chat", joinMsgs[1]["text"])

	// bob got the welcome and the existing ledger as history, not as live messages
	bobHistory := bob.eventsOfType(t, EvHistoryMessage)
	require.Len(t, bobHistory, 1)
	require.Equal(t, "alice has joined the chat", bobHistory[0]["text"])
	bobLive := bob.eventsOfType(t, EvMessage)
	require.Len(t, bobLive, 1)
	require.Equal(t, "Welcome to the chat, bob!", bobLive[0]["text"])
}

func TestRoom_DuplicateJoinUpserts(t *testing.T) {
	room := newTestRoom("lobby")
	addMember(room, "alice")

	// same display name from a new connection takes over the record
	conn2 := newFakeConn()
	u := &domain.User{ID: "alice2", Username: "alice"}
	room.Join("sid-alice-2", NewMemberSession(domain.NewMember(u), conn2))

	require.Equal(t, 1, room.MemberCount())
	views := room.MembersSnapshot()
	require.Len(t, views, 1)
	require.Equal(t, "alice", views[0].Username)
}

func TestRoom_RejoinUnderNewNameFreesOldName(t *testing.T) {
	room := newTestRoom("lobby")

	conn := newFakeConn()
	sid := SessionID("sid-1")
	room.Join(sid, NewMemberSession(domain.NewMember(&domain.User{ID: "u1", Username: "alice"}), conn))

	// same session comes back under a different display name
	room.Join(sid, NewMemberSession(domain.NewMember(&domain.User{ID: "u1", Username: "bobby"}), conn))
	require.Equal(t, 1, room.MemberCount())

	// a newcomer claiming the vacated name must not evict the renamed member
	sid2, _ := addMember(room, "alice")
	require.Equal(t, 2, room.MemberCount())
	names := lo.Map(room.MembersSnapshot(), func(v UserView, _ int) string { return v.Username })
	require.ElementsMatch(t, []string{"alice", "bobby"}, names)

	conn.reset()
	_, res, err := room.Post(sid2, "hello", "")
	require.NoError(t, err)
	require.Equal(t, 2, res.SentTo)
	msgs := conn.eventsOfType(t, EvMessage)
	require.Len(t, msgs, 1, "renamed member keeps receiving room events")
	require.Equal(t, "hello", msgs[0]["text"])
}

func TestRoom_PostOwnMessageFlag(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, alice := addMember(room, "alice")
	_, bob := addMember(room, "bob")
	alice.reset()
	bob.reset()

	msg, res, err := room.Post(aliceSID, "hi", "")
	require.NoError(t, err)
	require.Empty(t, res.Dropped)
	require.Equal(t, "alice", msg.Username)

	aliceMsgs := alice.eventsOfType(t, EvMessage)
	require.Len(t, aliceMsgs, 1)
	require.Equal(t, "hi", aliceMsgs[0]["text"])
	require.Equal(t, true, aliceMsgs[0]["isOwnMessage"])

	bobMsgs := bob.eventsOfType(t, EvMessage)
	require.Len(t, bobMsgs, 1)
	require.Equal(t, "hi", bobMsgs[0]["text"])
	require.Equal(t, false, bobMsgs[0]["isOwnMessage"])
}

func TestRoom_PostSanitizesMarkup(t *testing.T) {
	room := newTestRoom("lobby")
	sid, _ := addMember(room, "alice")

	msg, _, err := room.Post(sid, "<script>alert(1)</script>hello <b>world</b>", "")
	require.NoError(t, err)
	require.Equal(t, "hello world", msg.Text)
}

func TestRoom_LedgerOrderConsistentAcrossMembers(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, alice := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")
	alice.reset()
	bob.reset()

	_, _, err := room.Post(aliceSID, "one", "")
	require.NoError(t, err)
	_, _, err = room.Post(bobSID, "two", "")
	require.NoError(t, err)
	_, _, err = room.Post(aliceSID, "three", "")
	require.NoError(t, err)

	order := func(conn *fakeConn) []string {
		var texts []string
		for _, m := range conn.eventsOfType(t, EvMessage) {
			texts = append(texts, m["text"].(string))
		}
		return texts
	}
	require.Equal(t, []string{"one", "two", "three"}, order(alice))
	require.Equal(t, order(alice), order(bob))
}

func TestRoom_EditByNonAuthorIsSilentNoop(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, alice := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "original", "")
	require.NoError(t, err)
	alice.reset()
	bob.reset()

	_, applied := room.Edit(bobSID, msg.ID, "hijacked")
	require.False(t, applied)
	require.Equal(t, "original", msg.Text)
	require.False(t, msg.Edited)
	require.Empty(t, alice.eventsOfType(t, EvMessageEdited))
	require.Empty(t, bob.eventsOfType(t, EvMessageEdited))
}

func TestRoom_EditByAuthorBroadcasts(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	_, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "original", "")
	require.NoError(t, err)
	bob.reset()

	_, applied := room.Edit(aliceSID, msg.ID, "fixed <i>now</i>")
	require.True(t, applied)
	require.Equal(t, "fixed now", msg.Text)
	require.True(t, msg.Edited)

	edits := bob.eventsOfType(t, EvMessageEdited)
	require.Len(t, edits, 1)
	require.Equal(t, string(msg.ID), edits[0]["id"])
	require.Equal(t, "fixed now", edits[0]["text"])
}

func TestRoom_DeleteRemovesPinnedEntry(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "pin me", "")
	require.NoError(t, err)

	_, _, err = room.Pin(bobSID, msg.ID)
	require.NoError(t, err)

	before := room.LedgerLen()
	_, applied := room.Delete(aliceSID, msg.ID)
	require.True(t, applied)
	require.Equal(t, before-1, room.LedgerLen())

	deletes := bob.eventsOfType(t, EvMessageDeleted)
	require.Len(t, deletes, 1)
	require.Equal(t, string(msg.ID), deletes[0]["id"])

	// the id no longer exists, so pinning again is a NotFound
	_, _, err = room.Pin(bobSID, msg.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRoom_DeleteByNonAuthorIsSilentNoop(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "keep", "")
	require.NoError(t, err)
	bob.reset()

	before := room.LedgerLen()
	_, applied := room.Delete(bobSID, msg.ID)
	require.False(t, applied)
	require.Equal(t, before, room.LedgerLen())
	require.Empty(t, bob.eventsOfType(t, EvMessageDeleted))
}

func TestRoom_ReactTallies(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "react to me", "")
	require.NoError(t, err)
	bob.reset()

	const n = 4
	for i := 0; i < n; i++ {
		count, _, err := room.React(bobSID, msg.ID, "👍")
		require.NoError(t, err)
		require.Equal(t, i+1, count)
	}
	require.Equal(t, n, msg.Reactions["👍"])

	reactions := bob.eventsOfType(t, EvReaction)
	require.Len(t, reactions, n)
	last := reactions[n-1]
	require.Equal(t, "👍", last["reaction"])
	require.Equal(t, float64(n), last["count"])

	_, _, err = room.React(bobSID, "no-such-id", "👍")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRoom_PinAlreadyPinned(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "pin once", "")
	require.NoError(t, err)
	bob.reset()

	entry, _, err := room.Pin(bobSID, msg.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", entry.PinnedBy)
	require.Equal(t, msg.Text, entry.Message.Text)

	pins := bob.eventsOfType(t, EvPinnedMessage)
	require.Len(t, pins, 1)
	require.Equal(t, "bob", pins[0]["pinnedBy"])

	_, _, err = room.Pin(bobSID, msg.ID)
	require.ErrorIs(t, err, ErrAlreadyPinned)
}

func TestRoom_PinnedSnapshotIgnoresLaterEdits(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")

	msg, _, err := room.Post(aliceSID, "v1", "")
	require.NoError(t, err)
	entry, _, err := room.Pin(aliceSID, msg.ID)
	require.NoError(t, err)

	_, applied := room.Edit(aliceSID, msg.ID, "v2")
	require.True(t, applied)
	require.Equal(t, "v1", entry.Message.Text)
}

func TestRoom_MarkReadIdempotent(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "read me", "")
	require.NoError(t, err)
	bob.reset()

	_, err = room.MarkRead(bobSID, msg.ID)
	require.NoError(t, err)
	_, err = room.MarkRead(bobSID, msg.ID)
	require.NoError(t, err)

	require.Equal(t, []string{"bob"}, msg.ReadBy)
	reads := bob.eventsOfType(t, EvMessageReadBy)
	require.Len(t, reads, 1, "second markRead must not broadcast")
	require.Equal(t, "bob", reads[0]["username"])

	_, err = room.MarkRead(bobSID, "missing")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRoom_TypingExcludesRequester(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, alice := addMember(room, "alice")
	_, bob := addMember(room, "bob")
	alice.reset()
	bob.reset()

	room.SetTyping(aliceSID, true)

	require.Empty(t, alice.eventsOfType(t, EvTyping))
	typing := bob.eventsOfType(t, EvTyping)
	require.Len(t, typing, 1)
	require.Equal(t, "alice", typing[0]["username"])
	require.Equal(t, true, typing[0]["isTyping"])
}

func TestRoom_ClearHistoryEmptiesLedgerAndPins(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	bobSID, bob := addMember(room, "bob")

	msg, _, err := room.Post(aliceSID, "soon gone", "")
	require.NoError(t, err)
	_, _, err = room.Pin(bobSID, msg.ID)
	require.NoError(t, err)
	bob.reset()

	room.ClearHistory(aliceSID)

	// only the announcement survives
	require.Equal(t, 1, room.LedgerLen())
	cleared := bob.eventsOfType(t, EvMessage)
	require.Len(t, cleared, 1)
	require.Equal(t, "alice cleared the chat history", cleared[0]["text"])

	// previous pins are gone for new joiners
	_, carol := addMember(room, "carol")
	require.Empty(t, carol.eventsOfType(t, EvPinnedMessage))
}

func TestRoom_LeaveAnnouncesAndUpdatesUserList(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")
	_, bob := addMember(room, "bob")
	bob.reset()

	res, ok := room.Leave(aliceSID)
	require.True(t, ok)
	require.Empty(t, res.Dropped)
	require.Equal(t, 1, room.MemberCount())

	msgs := bob.eventsOfType(t, EvMessage)
	require.Len(t, msgs, 1)
	require.Equal(t, "alice has left the chat", msgs[0]["text"])
	lists := bob.eventsOfType(t, EvUserList)
	require.Len(t, lists, 1)

	_, ok = room.Leave(aliceSID)
	require.False(t, ok)
}

func TestRoom_SlowConsumerReportedDropped(t *testing.T) {
	room := newTestRoom("lobby")
	aliceSID, _ := addMember(room, "alice")

	full := &fakeConn{limit: 0}
	u := &domain.User{ID: "bob", Username: "bob"}
	room.Join("sid-bob", NewMemberSession(domain.NewMember(u), full))

	_, res, err := room.Post(aliceSID, "hello", "")
	require.NoError(t, err)
	require.Contains(t, res.Dropped, SessionID("sid-bob"))
}

func TestRoom_RecentContextSnapshot(t *testing.T) {
	room := newTestRoom("lobby")
	sid, _ := addMember(room, "alice")

	var last *domain.Message
	for _, text := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		m, _, err := room.Post(sid, text, "")
		require.NoError(t, err)
		last = m
	}

	ctxMsgs := room.RecentContext(5)
	require.Len(t, ctxMsgs, 5)
	require.Equal(t, "c", ctxMsgs[0].Text)
	require.Equal(t, "g", ctxMsgs[4].Text)
	for _, m := range ctxMsgs {
		require.False(t, m.IsSystem)
	}

	// later edits must not reach the snapshot already taken
	_, applied := room.Edit(sid, last.ID, "mutated")
	require.True(t, applied)
	require.Equal(t, "g", ctxMsgs[4].Text)
}
