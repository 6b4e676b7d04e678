package janus

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"roomcast/types/request"
)

func sendCandidate(ctx Context, candidate webrtc.ICECandidateInit) {
	if err := ctx.Send(request.NewTrickle(ctx.SessionID(), ctx.PluginID(), candidate)); err != nil {
		log.Warn().Str("module", "janus").Err(err).Msg("failed to trickle candidate")
	}
}

func sendEndOfCandidates(ctx Context) {
	if err := ctx.Send(request.NewTrickleCompleted(ctx.SessionID(), ctx.PluginID())); err != nil {
		log.Warn().Str("module", "janus").Err(err).Msg("failed to send end of candidates")
	}
}
