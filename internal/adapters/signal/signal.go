// Package signal is the WebSocket adapter: it owns connections and their
// pumps, decodes inbound client events and forwards them to the engine.
// It never touches room state directly.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/app"
	"github.com/parlor-chat/parlor/internal/core"
	"github.com/parlor-chat/parlor/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

var validate = validator.New()

type Controller struct {
	Engine *app.Engine

	SendQueue  int
	ReadLimit  int64
	PingPeriod time.Duration
}

type Options struct {
	SendQueue  int
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(engine *app.Engine, opts Options) *Controller {
	if opts.SendQueue <= 0 {
		opts.SendQueue = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &Controller{
		Engine:     engine,
		SendQueue:  opts.SendQueue,
		ReadLimit:  opts.ReadLimit,
		PingPeriod: opts.PingPeriod,
	}
}

// WsConn wraps one client socket with a bounded outbound queue. TrySend
// never blocks: a full queue returns ErrBackpressure and the engine's
// policy decides the member's fate.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
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

// Handle upgrades the HTTP request, binds the session into the registry
// and starts the read/write pumps.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.SendQueue),
	}

	user := ctl.Engine.Registry.GetOrCreateUser(sid)
	meta := domain.NewMember(user)
	sess := core.NewMemberSession(meta, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Engine.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	frame, err := core.EncodeEvent(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *Controller) sendError(c *WsConn, err error) {
	ctl.sendJSON(c, core.NewErrorEvent(err))
}
