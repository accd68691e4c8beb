package sse

import (
	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/pubsub"
	"go.uber.org/zap"
)

// Route dispatches an event to its category's action: system and
// connection events broadcast to the map's own topic under the same event
// name; "connected" is logged only; "map_kill" and everything in the
// "other" category (character/acl/signature/rally/unknown) are ignored.
func Route(bus *pubsub.Bus, env model.EventEnvelope, mapURL string, log *zap.SugaredLogger) {
	switch model.Categorize(env.Type) {
	case model.CategorySystem, model.CategoryConnection:
		bus.Broadcast(mapURL, env)
	case model.CategorySpecial:
		if env.Type == model.EventConnected {
			log.Infow("sse connected event received", "server_time", env.ServerTime)
		}
		// map_kill: ignored beyond this point
	default:
		// character/acl/signature/rally/unknown: ignored
	}
}
