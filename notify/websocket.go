package notify

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	pongWait       = pingPeriod + 15*time.Second
	maxMessageSize = 1024
)

// clientMessage is what observers may send; only ping is understood
type clientMessage struct {
	Type string `json:"type"`
}

// WebSocketServer upgrades HTTP requests and streams hub messages to them
type WebSocketServer struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	pongWait   time.Duration
}

// NewWebSocketServer creates the /ws endpoint handler. Origins are not
// restricted.
func NewWebSocketServer(hub *Hub) *WebSocketServer {
	return &WebSocketServer{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

// ServeHTTP handles one observer connection until either side closes it
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	observer, err := s.hub.Subscribe(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to subscribe observer")
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.Unsubscribe(observer)
		log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	log.WithFields(log.Fields{
		"observer": observer.ID,
		"remote":   r.RemoteAddr,
	}).Info("Observer connected")

	replies := make(chan Message, 4)
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.readPump(conn, replies)
	}()
	s.writePump(conn, observer, replies, done)

	s.hub.Unsubscribe(observer)
	conn.Close()
	<-done

	log.WithField("observer", observer.ID).Info("Observer disconnected")
}

// readPump consumes client frames, answering ping messages, until the
// connection fails or stays silent past the read deadline
func (s *WebSocketServer) readPump(conn *websocket.Conn, replies chan<- Message) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("Observer read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.pongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			select {
			case replies <- Message{Type: MessageTypePong, Timestamp: time.Now().UTC()}:
			default:
			}
		}
	}
}

// writePump is the connection's only writer
func (s *WebSocketServer) writePump(conn *websocket.Conn, observer *Observer, replies <-chan Message, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-observer.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case msg := <-replies:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
