package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/core"
)

func (ctl *Controller) handleJoin(sid core.SessionID, conn *WsConn, data []byte) {
	type joinPayload struct {
		Type     string `json:"type"`
		Username string `json:"username" validate:"required"`
		Room     string `json:"room" validate:"required"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, core.ErrNameRequired)
		return
	}
	if err := validate.Struct(p); err != nil {
		ctl.sendError(conn, core.ErrNameRequired)
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Str("username", p.Username).Msg("join")
	if err := ctl.Engine.Join(sid, p.Username, p.Room); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handleLeave(sid core.SessionID, conn *WsConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if err := ctl.Engine.Leave(sid); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handleSetTyping(sid core.SessionID, _ *WsConn, data []byte) {
	type typingPayload struct {
		Type     string `json:"type"`
		IsTyping bool   `json:"isTyping"`
	}
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad setTyping payload")
		return
	}
	ctl.Engine.SetTyping(sid, p.IsTyping)
}

func (ctl *Controller) handleClearHistory(sid core.SessionID, _ *WsConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("clear history")
	ctl.Engine.ClearHistory(sid)
}
