package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/core"
	"github.com/parlor-chat/parlor/internal/domain"
)

func (ctl *Controller) handlePost(sid core.SessionID, conn *WsConn, data []byte) {
	type postPayload struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	var p postPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad post payload")
		ctl.sendError(conn, core.ErrEmptyMessage)
		return
	}
	if err := ctl.Engine.Post(sid, p.Text, p.Image); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handleEdit(sid core.SessionID, conn *WsConn, data []byte) {
	type editPayload struct {
		Type string `json:"type"`
		ID   string `json:"id" validate:"required"`
		Text string `json:"text"`
	}
	var p editPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad edit payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		return
	}
	if err := ctl.Engine.Edit(sid, domain.MessageID(p.ID), p.Text); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handleDelete(sid core.SessionID, conn *WsConn, data []byte) {
	type deletePayload struct {
		Type string `json:"type"`
		ID   string `json:"id" validate:"required"`
	}
	var p deletePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad delete payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		return
	}
	if err := ctl.Engine.Delete(sid, domain.MessageID(p.ID)); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handleReact(sid core.SessionID, conn *WsConn, data []byte) {
	type reactPayload struct {
		Type      string `json:"type"`
		MessageID string `json:"messageId" validate:"required"`
		Reaction  string `json:"reaction" validate:"required"`
	}
	var p reactPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad react payload")
		ctl.sendError(conn, core.ErrMessageNotFound)
		return
	}
	if err := validate.Struct(p); err != nil {
		ctl.sendError(conn, core.ErrMessageNotFound)
		return
	}
	if err := ctl.Engine.React(sid, domain.MessageID(p.MessageID), p.Reaction); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handlePin(sid core.SessionID, conn *WsConn, data []byte) {
	type pinPayload struct {
		Type string `json:"type"`
		ID   string `json:"id" validate:"required"`
	}
	var p pinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad pin payload")
		ctl.sendError(conn, core.ErrMessageNotFound)
		return
	}
	if err := validate.Struct(p); err != nil {
		ctl.sendError(conn, core.ErrMessageNotFound)
		return
	}
	if err := ctl.Engine.Pin(sid, domain.MessageID(p.ID)); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *Controller) handleMarkRead(sid core.SessionID, conn *WsConn, data []byte) {
	type readPayload struct {
		Type string `json:"type"`
		ID   string `json:"id" validate:"required"`
	}
	var p readPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad markRead payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		return
	}
	if err := ctl.Engine.MarkRead(sid, domain.MessageID(p.ID)); err != nil {
		ctl.sendError(conn, err)
	}
}
