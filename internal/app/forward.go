package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/vkotler/micstage/internal/domain"
	"github.com/vkotler/micstage/internal/protocol"
)

// Forward relays an offer/answer/candidate payload verbatim to the target
// connection, stamped with the sender's id. The payload is never inspected.
// A missing target is silently dropped: peer negotiation is best-effort and
// the layer above handles absence via its own timeout.
func (rt *Router) Forward(sid domain.SessionID, ev protocol.Signal) {
	if ev.Target == "" {
		return
	}
	conn, ok := rt.Registry.Get(domain.SessionID(ev.Target))
	if !ok {
		log.Debug().Str("module", "app.forward").Str("from", string(sid)).Str("target", ev.Target).Str("kind", ev.Type).Msg("target gone, dropping")
		return
	}
	out := protocol.Signal{
		Type:    ev.Type,
		Target:  ev.Target,
		From:    string(sid),
		Payload: ev.Payload,
	}
	b, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Str("module", "app.forward").Msg("marshal signal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "app.forward").Str("target", ev.Target).Msg("relay dropped")
	}
}
