package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/app/private"
	"github.com/parlor-chat/parlor/internal/core"
)

func (ctl *Controller) handleSetUsername(sid core.SessionID, conn *WsConn, data []byte) {
	type namePayload struct {
		Type     string `json:"type"`
		Username string `json:"username" validate:"required"`
	}
	var p namePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad setUsername payload")
		ctl.sendError(conn, private.ErrNoUsername)
		return
	}
	if err := validate.Struct(p); err != nil {
		ctl.sendError(conn, private.ErrNoUsername)
		return
	}
	if err := ctl.Engine.SetUsername(sid, p.Username); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handlePrivateMessage(sid core.SessionID, conn *WsConn, data []byte) {
	type pmPayload struct {
		Type string `json:"type"`
		To   string `json:"to" validate:"required"`
		Text string `json:"text" validate:"required"`
	}
	var p pmPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad privateMessage payload")
		ctl.sendError(conn, private.ErrRecipientOffline)
		return
	}
	if err := validate.Struct(p); err != nil {
		ctl.sendError(conn, private.ErrRecipientOffline)
		return
	}
	if _, err := ctl.Engine.SendPrivate(sid, p.To, p.Text); err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, struct {
		Type    string `json:"type"`
		Success bool   `json:"success"`
	}{Type: "privateMessageAck", Success: true})
}

func (ctl *Controller) handlePrivateHistory(sid core.SessionID, conn *WsConn, data []byte) {
	type historyPayload struct {
		Type     string `json:"type"`
		WithUser string `json:"withUser" validate:"required"`
	}
	var p historyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad history payload")
		ctl.sendError(conn, private.ErrNoUsername)
		return
	}
	if err := validate.Struct(p); err != nil {
		ctl.sendError(conn, private.ErrNoUsername)
		return
	}
	history, err := ctl.Engine.PrivateHistory(sid, p.WithUser)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, struct {
		Type     string             `json:"type"`
		WithUser string             `json:"withUser"`
		Messages []*private.Message `json:"messages"`
	}{Type: "privateChatHistory", WithUser: p.WithUser, Messages: history})
}
