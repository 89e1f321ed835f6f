package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/app/assist"
	"github.com/parlor-chat/parlor/internal/core"
	"github.com/parlor-chat/parlor/internal/domain"
)

// AskAssistant validates the request and fires the collaborator call on
// its own goroutine, against a context snapshot taken now. The reply
// (or the fallback text) goes to the requester only and is never
// appended to the shared ledger.
func (e *Engine) AskAssistant(sid core.SessionID, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return core.ErrPromptRequired
	}
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return core.ErrNoActiveRoom
	}
	snapshot := e.Rooms.GetOrCreate(roomName).RecentContext(e.HistoryContext)

	go e.runAssistant(sid, prompt, snapshot)
	return nil
}

func (e *Engine) runAssistant(sid core.SessionID, prompt string, history []domain.Message) {
	text, err := e.Assist.GenerateResponse(context.Background(), prompt, history)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("sid", string(sid)).Msg("assistant call failed")
		text = assist.FallbackReply
	}
	reply := domain.NewMessage(domain.AssistantUsername, text, "")
	e.sendToSession(sid, core.NewMessageEvent(reply, false))
}
