package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
	"github.com/civmodel/civkernel/internal/sim"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type wireMessage struct {
	Type   rules.EventType `json:"type"`
	GameID string          `json:"game_id"`
	Data   json.RawMessage `json:"data"`
}

func newDuel(t *testing.T) (*game.Game, *game.Actor, *game.Actor) {
	t.Helper()
	g, err := game.New(game.WithTerrain(game.NewHexGrid(6, 6)))
	require.NoError(t, err)
	red, err := g.AddPlayer("red", 0)
	require.NoError(t, err)
	blue, err := g.AddPlayer("blue", 1)
	require.NoError(t, err)
	spec := &game.ActorSpec{Kind: "warrior", MaxAP: 2, MaxHP: 10, AttackPower: 20, DefencePower: 1, NoHeal: true}
	attacker, err := g.ProduceActor(red, spec, game.Point{X: 1, Y: 1})
	require.NoError(t, err)
	defender, err := g.ProduceActor(blue, spec, game.Point{X: 2, Y: 1})
	require.NoError(t, err)
	return g, attacker, defender
}

func startServer(t *testing.T, hub *Hub, sessions *sim.Manager) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(NewHandler(hub, sessions, zaptest.NewLogger(t)))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestNewMessageViews(t *testing.T) {
	g, attacker, defender := newDuel(t)
	var battle, destroyed *Message
	g.Bus().Subscribe(func(e rules.Event) {
		m := NewMessage(g.ID(), e)
		switch e.Type {
		case rules.EventAfterBattle:
			battle = &m
		case rules.EventActorDestroyed:
			destroyed = &m
		}
	}, rules.PriorityPresentation)

	_, err := attacker.AttackTo(defender, true, false)
	require.NoError(t, err)

	require.NotNil(t, battle)
	bv, ok := battle.Data.(BattleView)
	require.True(t, ok)
	assert.Equal(t, "victory", bv.Result)
	assert.Equal(t, attacker.ID(), bv.AttackerID)
	assert.True(t, bv.DefenderDied)
	assert.Equal(t, g.ID(), battle.GameID)

	require.NotNil(t, destroyed)
	av, ok := destroyed.Data.(ActorView)
	require.True(t, ok)
	assert.Equal(t, ActorView{ID: defender.ID(), Kind: "warrior", Owner: "blue"}, av)
}

func TestNewMessageUnknownPayload(t *testing.T) {
	m := NewMessage("g1", rules.Event{Type: rules.EventBeforeBattle, Payload: struct{ secret int }{1}})
	assert.Nil(t, m.Data)
	assert.Equal(t, rules.EventBeforeBattle, m.Type)
}

func TestFeedStreamsGameEvents(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	srv := startServer(t, hub, nil)

	g, attacker, defender := newDuel(t)
	watching := dial(t, srv, "?game="+g.ID())
	elsewhere := dial(t, srv, "?game=other")
	require.Eventually(t, func() bool { return hub.Connected() == 2 }, 5*time.Second, 10*time.Millisecond)

	detach := hub.Attach(g)
	_, err := attacker.AttackTo(defender, true, false)
	require.NoError(t, err)
	detach()
	require.True(t, hub.Broadcast("other", Message{Type: "MARKER", GameID: "other"}))

	var seen []rules.EventType
	for {
		msg := read(t, watching)
		assert.Equal(t, g.ID(), msg.GameID)
		seen = append(seen, msg.Type)
		if msg.Type == rules.EventAfterBattle {
			var bv BattleView
			require.NoError(t, json.Unmarshal(msg.Data, &bv))
			assert.Equal(t, "victory", bv.Result)
			break
		}
	}
	assert.Contains(t, seen, rules.EventBeforeBattle)

	first := read(t, elsewhere)
	assert.Equal(t, rules.EventType("MARKER"), first.Type, "other games are filtered out")
}

func TestFeedDetachStopsForwarding(t *testing.T) {
	hub := NewHub(nil)
	g, _, _ := newDuel(t)
	before := g.Bus().Len()
	detach := hub.Attach(g)
	assert.Equal(t, before+1, g.Bus().Len())
	detach()
	assert.Equal(t, before, g.Bus().Len())
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	for range broadcastBuffer {
		require.True(t, hub.Broadcast("g", Message{}))
	}
	assert.False(t, hub.Broadcast("g", Message{}))
}

func TestSessionsEndpoint(t *testing.T) {
	g, _, _ := newDuel(t)
	m := sim.NewManager(zaptest.NewLogger(t))
	_, err := m.CreateSession("duel", g)
	require.NoError(t, err)

	srv := startServer(t, NewHub(nil), m)
	resp, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var views []SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, g.ID(), views[0].ID)
	assert.Equal(t, "duel", views[0].Name)
	assert.Equal(t, "WAITING", views[0].State)
	assert.Nil(t, views[0].StartedAt)
}

func TestHealthz(t *testing.T) {
	srv := startServer(t, NewHub(nil), nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
