package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/stockcast/stockcast/internal/session"
)

// conn pairs one WebSocket connection with its session. Three loops run per
// connection: readLoop feeds inbound frames to the session, writeLoop drains
// the session's outbound queue, and pingLoop keeps the peer alive. The first
// loop to fail tears the whole connection down.
type conn struct {
	srv    *Server
	ws     *websocket.Conn
	sess   *session.Session
	cfg    Config
	logger *slog.Logger

	done     chan struct{}
	teardown sync.Once
}

func newConn(srv *Server, ws *websocket.Conn, sess *session.Session, cfg Config, logger *slog.Logger) *conn {
	return &conn{
		srv:    srv,
		ws:     ws,
		sess:   sess,
		cfg:    cfg,
		logger: logger.With("session_id", sess.ID()),
		done:   make(chan struct{}),
	}
}

// run services the connection until either side closes it. It blocks until
// all loops have exited and the session is torn down.
func (c *conn) run() {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	var g errgroup.Group
	g.Go(c.readLoop)
	g.Go(c.writeLoop)
	g.Go(c.pingLoop)
	_ = g.Wait()

	c.logger.Debug("connection closed")
}

// readLoop delivers inbound frames to the session until the peer closes or
// the read deadline lapses.
func (c *conn) readLoop() error {
	defer c.close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return nil
		}
		c.sess.HandleMessage(data)
	}
}

// writeLoop drains the session's outbound queue onto the wire. It exits when
// the queue closes or a write fails.
func (c *conn) writeLoop() error {
	defer c.close()

	out := c.sess.Out()
	for {
		msg, ok := out.Pop()
		if !ok {
			return nil
		}

		data, err := json.Marshal(msg)
		if err != nil {
			c.logger.Error("failed to marshal outbound message", "error", err)
			continue
		}

		_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Warn("websocket write failed", "error", err)
			return nil
		}
	}
}

// pingLoop sends keepalive pings. WriteControl is safe to call concurrently
// with writeLoop's data writes.
func (c *conn) pingLoop() error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return nil
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Warn("ping failed", "error", err)
				return nil
			}
		}
	}
}

// close tears the connection down exactly once: the session detaches from
// every feed and closes its outbound queue, which unblocks writeLoop, and
// closing the socket unblocks readLoop.
func (c *conn) close() {
	c.teardown.Do(func() {
		close(c.done)
		c.sess.Teardown()

		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()

		c.srv.removeConn(c)
	})
}
