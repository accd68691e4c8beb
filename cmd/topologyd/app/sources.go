package app

import (
	"time"

	"github.com/wanderer-industries/topologyd/server"
)

// mapStatuses implements server.MapSource, summarizing every registered
// map actor for the admin status feed.
func (a *App) mapStatuses() []server.MapStatus {
	actors := a.registry.All("map")
	out := make([]server.MapStatus, 0, len(actors))
	for _, actor := range actors {
		state := actor.State()
		view := actor.RawView()

		var serverMapID string
		if state.ServerMapID != nil {
			serverMapID = *state.ServerMapID
		}

		out = append(out, server.MapStatus{
			MapID:            state.MapID,
			Title:            state.Map.Title,
			IsMain:           state.Map.IsMain,
			ServerMapID:      serverMapID,
			SystemCount:      len(view.Systems),
			ConnectionCount:  len(view.Connections),
			LastAPIRefreshAt: state.LastAPIRefreshAt,
		})
	}
	return out
}

// connectionStatuses implements server.ConnSource over the connection
// monitor's full registry, pairing each connection's bookkeeping with its
// computed quality score.
func (a *App) connectionStatuses() []server.ConnectionStatus {
	conns := a.Monitor.All()
	out := make([]server.ConnectionStatus, 0, len(conns))
	for _, c := range conns {
		score, category, err := a.Monitor.QualityScore(c.ID)
		if err != nil {
			continue
		}
		out = append(out, server.ConnectionStatus{
			ID:           c.ID,
			Type:         c.Type.String(),
			Status:       c.Status.String(),
			UptimePct:    c.UptimePercent(time.Now()),
			QualityScore: score,
			Category:     category.String(),
		})
	}
	return out
}

// licenseStatus implements server.LicenseSource, trimming the validator's
// full state down to what the status feed exposes.
func (a *App) licenseStatus() *server.LicenseStatus {
	state := a.License.State()
	return &server.LicenseStatus{
		Valid:         state.Valid,
		BotAssigned:   state.BotAssigned,
		Error:         state.ErrorMessage,
		LastValidated: state.LastValidated,
	}
}
