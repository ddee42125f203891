package api

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"taskboard/pkg/realtime"
)

// handleWebSocket upgrades the request and serves the client until it
// disconnects. The first message it receives is a snapshot of all tasks.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		log.WithError(err).Debug("websocket upgrade")
		return
	}
	cl := realtime.NewClient(conn, s.clientCfg)
	if err := s.sync.Serve(r.Context(), cl); err != nil {
		log.WithError(err).WithField("client", cl.ID()).Error("websocket join")
	}
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.Resync(r.Context()); err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, 202, map[string]int{"clients": s.sync.Registry().Len()})
}
