package observer

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsListener adapts a *websocket.Conn to the Listener interface. Writes
// are serialized with a mutex because gorilla/websocket connections are
// not safe for concurrent writers.
type wsListener struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (l *wsListener) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

func (l *wsListener) Close() {
	l.conn.Close()
}

// ServeWS upgrades r to a WebSocket connection, registers it with hub,
// and blocks reading (and discarding) client frames until the
// connection closes, at which point it unregisters itself. Mount this
// at the observer channel's HTTP route.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	l := &wsListener{conn: conn}
	hub.Register(l)
	log.Debug().Int("listeners", hub.Count()).Msg("observer client connected")

	defer func() {
		hub.Unregister(l)
		conn.Close()
		log.Debug().Int("listeners", hub.Count()).Msg("observer client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
