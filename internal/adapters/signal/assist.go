package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/core"
)

// aiAck acknowledges that the assistant request was accepted; the reply
// itself arrives later as a requester-only message event.
type aiAck struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

func (ctl *Controller) handleAIRequest(sid core.SessionID, conn *WsConn, data []byte) {
	type aiPayload struct {
		Type   string `json:"type"`
		Prompt string `json:"prompt" validate:"required"`
	}
	var p aiPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad aiRequest payload")
		ctl.sendError(conn, core.ErrPromptRequired)
		return
	}
	if err := validate.Struct(p); err != nil {
		ctl.sendError(conn, core.ErrPromptRequired)
		return
	}
	if err := ctl.Engine.AskAssistant(sid, p.Prompt); err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, aiAck{Type: "aiAck", Success: true})
}
