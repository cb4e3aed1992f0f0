package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vkotler/micstage/internal/domain"
	"github.com/vkotler/micstage/internal/protocol"
)

// dispatch decodes the envelope and routes the typed event. A fault while
// handling one event is contained to that event: other rooms and connections
// keep running.
func (ctl *Controller) dispatch(ctx context.Context, sid domain.SessionID, c *wsConn, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("module", "signal").Str("sid", string(sid)).Msg("event handler panicked")
		}
	}()

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, protocol.CodeBadPayload, "malformed event")
		return
	}

	switch env.Type {
	case protocol.EvtJoinRoom:
		var ev protocol.JoinRoom
		if !ctl.decode(c, data, &ev) {
			return
		}
		ctl.Router.Join(ctx, sid, ev)
	case protocol.EvtLeaveRoom:
		ctl.Router.Leave(sid)
	case protocol.EvtSendMessage:
		if !ctl.Limiter.Allow(sid) {
			ctl.sendError(c, protocol.CodeRateLimited, "too many messages, slow down")
			return
		}
		var ev protocol.SendMessage
		if !ctl.decode(c, data, &ev) {
			return
		}
		ctl.Router.SendMessage(sid, ev)
	case protocol.EvtJoinMic:
		var ev protocol.JoinMic
		if !ctl.decode(c, data, &ev) {
			return
		}
		ctl.Router.JoinMic(sid, ev)
	case protocol.EvtLeaveMic:
		var ev protocol.LeaveMic
		if !ctl.decode(c, data, &ev) {
			return
		}
		ctl.Router.LeaveMic(sid, ev)
	case protocol.EvtGetUserSlot:
		var ev protocol.GetUserSlot
		if !ctl.decode(c, data, &ev) {
			return
		}
		ctl.Router.UserSlot(sid, ev)
	case protocol.EvtPing:
		ctl.sendJSON(c, protocol.Pong{Type: protocol.EvtPong, Timestamp: time.Now()})
	case protocol.EvtOffer, protocol.EvtAnswer, protocol.EvtICE:
		var ev protocol.Signal
		if !ctl.decode(c, data, &ev) {
			return
		}
		ev.Type = env.Type
		ctl.Router.Forward(sid, ev)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) decode(c *wsConn, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad payload")
		ctl.sendError(c, protocol.CodeBadPayload, "malformed event payload")
		return false
	}
	return true
}

func (ctl *Controller) sendError(c *wsConn, code, message string) {
	ctl.sendJSON(c, protocol.ErrorEvent{Type: protocol.EvtError, Code: code, Message: message})
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
