package adapters

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/app"
	"github.com/dkeye/Talk/internal/config"
	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const wsWriteWait = 5 * time.Second

// SignalWSController upgrades signaling connections and pumps frames between
// the socket and the coordinator.
type SignalWSController struct {
	Coordinator *app.Coordinator
	Cfg         *config.Config
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSignalConn implements core.SignalConnection over a websocket with a
// buffered send channel; a full buffer fails fast instead of blocking the
// coordinator. The mutex orders sends against Close: a broadcast racing the
// close path gets ErrConnClosed, never a write into a closed channel.
type wsSignalConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan core.Frame
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("ws upgrade failed")
		return
	}

	// A fresh id per socket; the client-token cookie only ties sockets to a
	// browser, not to a registry entry.
	connID := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "adapters.ws").Str("conn", string(connID)).Msg("new signaling connection")

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	sess := app.NewUserSession(connID, conn)

	connCtx, cancel := context.WithCancel(ctx)

	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, sess, conn)
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Msg("write failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sess *app.UserSession, c *wsSignalConn) {
	defer func() {
		cancel()
		ctl.Coordinator.OnDisconnect(sess)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	limiter := NewMessageRateLimiter(ctl.Cfg.MessagesPerSecond, time.Second)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("conn", string(sess.ConnID())).Msg("read loop exiting")
				return
			}
			if !limiter.Allow() {
				log.Warn().Str("module", "adapters.ws").Str("conn", string(sess.ConnID())).Msg("rate limit exceeded, closing")
				return
			}
			ctl.Coordinator.HandleMessage(sess, core.Frame(data))
		}
	}
}
