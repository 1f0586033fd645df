package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/flow-sensor/internal/status"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The status page is served from the same daemon; LAN-only, any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stream pushes the status JSON to websocket clients on every tracker update.
type stream struct {
	tracker *status.Tracker

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newStream(tracker *status.Tracker) *stream {
	return &stream{tracker: tracker, conns: make(map[*websocket.Conn]struct{})}
}

func (st *stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	updates, cancel := st.tracker.Subscribe()

	st.mu.Lock()
	st.conns[conn] = struct{}{}
	st.mu.Unlock()

	done := make(chan struct{})

	go func() {
		readPump(conn)
		close(done)
	}()

	writePump(conn, st.tracker.Snapshot(), updates, done)

	cancel()
	st.mu.Lock()
	delete(st.conns, conn)
	st.mu.Unlock()
	conn.Close()
	<-done
}

func (st *stream) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.conns)
}

func (st *stream) closeAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for conn := range st.conns {
		conn.Close()
	}
}

// writePump sends the initial snapshot, then one message per update, until
// the client goes away.
func writePump(conn *websocket.Conn, initial status.Snapshot, updates <-chan status.Snapshot, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func(snap status.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, status.FormatCompactJSON(snap)) == nil
	}

	if !send(initial) {
		return
	}
	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok || !send(snap) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and returns when the connection closes.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
