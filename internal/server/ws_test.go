package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpy-online/zpy-server-go/internal/config"
	"github.com/zpy-online/zpy-server-go/internal/table"
	"github.com/zpy-online/zpy-server-go/internal/zpy"
)

func newTestGateway(t *testing.T) (*Gateway, string) {
	g := NewGateway(
		config.ServerConfig{WriteTimeout: time.Second, PongTimeout: time.Minute},
		table.NewManager(nil),
		zpy.RuleModifiers{},
		nil,
	)
	srv := httptest.NewServer(http.HandlerFunc(g.handleWS))
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestGatewayCreateJoinIntent(t *testing.T) {
	_, url := newTestGateway(t)

	alice := dial(t, url)
	require.NoError(t, alice.WriteJSON(Frame{Type: frameCreate}))
	created := readFrame(t, alice)
	require.Equal(t, frameCreate, created.Type)
	require.NotEmpty(t, created.TableID)

	require.NoError(t, alice.WriteJSON(Frame{
		Type: frameJoin, TableID: created.TableID, Player: "alice",
	}))
	state := readFrame(t, alice)
	require.Equal(t, frameState, state.Type)
	require.NotNil(t, state.State)
	assert.Equal(t, zpy.PhaseInit, state.State.Phase)

	bob := dial(t, url)
	require.NoError(t, bob.WriteJSON(Frame{
		Type: frameJoin, TableID: created.TableID, Player: "bob",
	}))
	readFrame(t, bob)

	require.NoError(t, alice.WriteJSON(Frame{
		Type:   frameIntent,
		Intent: &zpy.Intent{Kind: zpy.ActAddPlayer, Player: "alice"},
	}))

	// both subscribers observe the accepted action
	for _, conn := range []*websocket.Conn{alice, bob} {
		eff := readFrame(t, conn)
		require.Equal(t, frameEffect, eff.Type)
		require.NotNil(t, eff.Effect)
		assert.Equal(t, zpy.ActAddPlayer, eff.Effect.Kind)
		assert.Equal(t, zpy.PlayerID("alice"), eff.Effect.Player)
	}
}

func TestGatewayRejections(t *testing.T) {
	_, url := newTestGateway(t)

	t.Run("intent before join", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(Frame{
			Type:   frameIntent,
			Intent: &zpy.Intent{Kind: zpy.ActAddPlayer, Player: "alice"},
		}))
		f := readFrame(t, conn)
		require.Equal(t, frameError, f.Type)
		assert.Equal(t, zpy.ErrInvalidArgument, f.Error.Kind)
	})

	t.Run("unknown table", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(Frame{Type: frameJoin, TableID: "nope", Player: "alice"}))
		f := readFrame(t, conn)
		require.Equal(t, frameError, f.Type)
		assert.Equal(t, zpy.ErrInvalidArgument, f.Error.Kind)
	})

	t.Run("unknown frame type", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(Frame{Type: "shout"}))
		f := readFrame(t, conn)
		require.Equal(t, frameError, f.Type)
	})

	t.Run("rejected intent surfaces to the offender only", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(Frame{Type: frameCreate}))
		created := readFrame(t, conn)
		require.NoError(t, conn.WriteJSON(Frame{
			Type: frameJoin, TableID: created.TableID, Player: "alice",
		}))
		readFrame(t, conn)

		require.NoError(t, conn.WriteJSON(Frame{
			Type:   frameIntent,
			Intent: &zpy.Intent{Kind: zpy.ActAddPlayer, Player: "bob"},
		}))
		f := readFrame(t, conn)
		require.Equal(t, frameError, f.Type)
		assert.Equal(t, zpy.ErrWrongPlayer, f.Error.Kind)
	})
}

func TestFrameWireShape(t *testing.T) {
	b, err := json.Marshal(Frame{
		Type:   frameIntent,
		Intent: &zpy.Intent{Kind: zpy.ActSetDecks, Player: "alice", NDecks: 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "intent",
		"intent": {"kind": "SET_DECKS", "player": "alice", "ndecks": 2}
	}`, string(b))

	var f Frame
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "error",
		"error": {"kind": "OUT_OF_TURN"}
	}`), &f))
	require.NotNil(t, f.Error)
	assert.Equal(t, zpy.ErrOutOfTurn, f.Error.Kind)
}
