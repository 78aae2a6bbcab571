package realtime

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/salonbook/salonbook/internal/metrics"
	"github.com/salonbook/salonbook/libs/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var (
	errSlowConsumer = errors.New("send buffer full")
	errConnClosed   = errors.New("connection closed")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer in front of the mux.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket to the registry's Conn contract. Send hands the
// payload to the write pump through a buffered channel and never blocks on
// the network; a full buffer means the consumer is too slow and the event is
// dropped for that connection.
type wsConn struct {
	sock *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSConn(sock *websocket.Conn) *wsConn {
	return &wsConn{
		sock: sock,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSlowConsumer
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.sock.Close()
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// Handler upgrades the real-time channel. The connection authenticates with
// the same identity claim as the REST surface (Authorization header or a
// token query parameter, since browsers cannot set websocket headers) and is
// registered under that identity until it disconnects.
func Handler(registry *Registry, verifier *auth.Verifier, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "err", err)
			return
		}

		conn := newWSConn(sock)
		registry.Register(claims.Subject, conn)
		metrics.WSConnections.Inc()
		logger.Info("realtime connected", "user_id", claims.Subject)

		defer func() {
			registry.Unregister(claims.Subject, conn)
			metrics.WSConnections.Dec()
			_ = conn.Close()
			logger.Info("realtime disconnected", "user_id", claims.Subject)
		}()

		go conn.writePump()

		_ = sock.SetReadDeadline(time.Now().Add(pongWait))
		sock.SetPongHandler(func(string) error {
			return sock.SetReadDeadline(time.Now().Add(pongWait))
		})
		// Inbound frames are ignored; the loop exists to detect disconnect.
		for {
			if _, _, err := sock.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
