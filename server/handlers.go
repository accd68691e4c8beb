package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	maps := s.mapSource()
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Maps: len(maps)})
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, MapsResponse{Maps: s.mapSource()})
}

func (s *Server) handleMapDetail(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	mapID := strings.TrimPrefix(r.URL.Path, "/maps/")
	if mapID == "" {
		writeError(w, http.StatusBadRequest, "missing map id")
		return
	}
	for _, m := range s.mapSource() {
		if m.MapID == mapID {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, http.StatusNotFound, ErrNotFound.Error())
}

func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, sendMsg: make(chan any, clientSendBuffer)}
	s.hub.add(c)
	s.logger.Debugw("status client connected", "remote", conn.RemoteAddr().String())

	go s.writePump(c)
	s.readPump(c)
}

// readPump drains (and discards) client frames purely to detect
// disconnects and keep the connection's pong handler firing; this feed is
// one-directional (server -> client).
func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.sendMsg:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
