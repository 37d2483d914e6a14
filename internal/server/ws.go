// Package server is the websocket gateway: it turns wire frames into engine
// intents and pushes each viewer's redacted effects back out. The frame
// format is this gateway's private concern; the engine contract starts and
// ends at Intent/Effect values.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zpy-online/zpy-server-go/internal/config"
	"github.com/zpy-online/zpy-server-go/internal/protocol"
	"github.com/zpy-online/zpy-server-go/internal/table"
	"github.com/zpy-online/zpy-server-go/internal/zpy"
	"go.uber.org/zap"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Type    string           `json:"type"`
	TableID string           `json:"table_id,omitempty"`
	Player  string           `json:"player,omitempty"`
	Intent  *zpy.Intent      `json:"intent,omitempty"`
	Effect  *zpy.Effect      `json:"effect,omitempty"`
	State   *zpy.ClientState `json:"state,omitempty"`
	Error   *zpy.Error       `json:"error,omitempty"`
}

const (
	frameCreate = "create"
	frameJoin   = "join"
	frameIntent = "intent"
	frameEffect = "effect"
	frameState  = "state"
	frameError  = "error"
)

// Gateway serves websocket clients against the table manager.
type Gateway struct {
	cfg      config.ServerConfig
	tables   *table.Manager
	defaults zpy.RuleModifiers
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewGateway builds the gateway.
func NewGateway(cfg config.ServerConfig, tables *table.Manager, defaults zpy.RuleModifiers, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:      cfg,
		tables:   tables,
		defaults: defaults,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves until the context is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)

	srv := &http.Server{
		Addr:    g.cfg.Address,
		Handler: mux,
	}
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("websocket gateway listening", zap.String("address", g.cfg.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type client struct {
	conn    *websocket.Conn
	send    chan Frame
	effects chan zpy.Effect
	player  protocol.UserID
	table   *table.Table
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn:    conn,
		send:    make(chan Frame, 16),
		effects: make(chan zpy.Effect, 64),
	}
	go g.writePump(c)
	g.readPump(c)
}

func (g *Gateway) readPump(c *client) {
	defer func() {
		if c.table != nil {
			c.table.Unsubscribe(c.player, c.effects)
		}
		close(c.send)
		c.conn.Close()
	}()

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		g.dispatch(c, frame)
	}
}

func (g *Gateway) writePump(c *client) {
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case eff := <-c.effects:
			c.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(Frame{Type: frameEffect, Effect: &eff}); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) dispatch(c *client, frame Frame) {
	switch frame.Type {
	case frameCreate:
		t := g.tables.Create(zpy.Config{Rules: g.defaults})
		c.send <- Frame{Type: frameCreate, TableID: t.ID}

	case frameJoin:
		t, err := g.tables.Get(frame.TableID)
		if err != nil {
			c.send <- errorFrame(&zpy.Error{Kind: zpy.ErrInvalidArgument, Msg: err.Error()})
			return
		}
		if c.table != nil {
			c.table.Unsubscribe(c.player, c.effects)
		}
		c.player = protocol.UserID(frame.Player)
		c.table = t
		state := t.Subscribe(c.player, c.effects)
		c.send <- Frame{Type: frameState, TableID: t.ID, State: state}

	case frameIntent:
		if c.table == nil || frame.Intent == nil {
			c.send <- errorFrame(&zpy.Error{Kind: zpy.ErrInvalidArgument, Msg: "not joined to a table"})
			return
		}
		if err := c.table.Submit(*frame.Intent, c.player); err != nil {
			// rejections surface to the offending viewer only
			c.send <- errorFrame(err)
		}

	default:
		c.send <- errorFrame(&zpy.Error{Kind: zpy.ErrInvalidArgument, Msg: "unknown frame type"})
	}
}

func errorFrame(err *zpy.Error) Frame {
	return Frame{Type: frameError, Error: err}
}
