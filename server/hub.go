package server

import (
	"sync"

	"github.com/gorilla/websocket"
)

// client is one /ws/status subscriber. sendMsg is buffered; a message for a
// slow reader whose buffer is full is dropped (the client stays connected)
// rather than allowed to block the broadcaster, matching the
// teacher's drop-on-full broadcast discipline.
type client struct {
	conn    *websocket.Conn
	sendMsg chan any
}

const clientSendBuffer = 16

// hub tracks connected /ws/status clients and fans out status snapshots to
// them, generalized from the teacher's single-purpose usage/job/daemon
// broadcaster into one transport-agnostic push of StatusMessage.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// remove drops c from the client set. It does not close c.sendMsg: a
// concurrent broadcast could still be sending on it, and closing here
// would race a send into a panic. writePump instead notices the
// connection is gone because readPump's own cleanup already closed
// c.conn, which fails its next write.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// broadcast sends msg to every connected client, skipping (not blocking on)
// any whose send buffer is full. Returns the number of clients it reached.
func (h *hub) broadcast(msg any) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		select {
		case c.sendMsg <- msg:
			sent++
		default:
		}
	}
	return sent
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
