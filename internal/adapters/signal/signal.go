// Package signal is the WebSocket transport adapter: it upgrades connections,
// runs the read/write pumps and decodes wire events before handing them to
// the event router.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vkotler/micstage/internal/app"
	"github.com/vkotler/micstage/internal/config"
	"github.com/vkotler/micstage/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Router  *app.Router
	Limiter *ChatRateLimiter

	readLimit  int64
	pingPeriod time.Duration
}

func NewController(rt *app.Router, cfg *config.Config) *Controller {
	return &Controller{
		Router:     rt,
		Limiter:    NewChatRateLimiter(cfg.ChatBurst, cfg.ChatWindow),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

// wsConn wraps one websocket with a buffered outbound queue. TrySend never
// blocks; a full queue is reported as backpressure and the router decides
// what to do with the slow member.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and registers the connection. The
// connection id comes from the client-token middleware.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan []byte, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Router.Registry.Register(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
