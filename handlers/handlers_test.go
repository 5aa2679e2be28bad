// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

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

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/coordinator"
	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/session"
	"github.com/danielhkuo/quizsmash/store"
	"github.com/danielhkuo/quizsmash/testutil"
)

func newTestServer(t *testing.T, tweak ...func(*cliparse.Config)) (*httptest.Server, *coordinator.Coordinator, *Hub) {
	t.Helper()

	cfg := testutil.GetTestConfig()
	cfg.QuestionDuration = 2 * time.Second
	for _, fn := range tweak {
		fn(&cfg)
	}

	conn := testutil.SetupTestDB(t)
	hub := NewHub()
	coord := coordinator.New(store.New(conn), &testutil.StaticGenerator{}, session.NewRegistry(), hub, cfg)
	t.Cleanup(coord.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", NewSocketHandler(coord, hub, cfg).ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, coord, hub
}

type frame struct {
	Event string          `json:"event"`
	Ack   int64           `json:"ack"`
	Data  json.RawMessage `json:"data"`
}

// wsClient reads frames in the background so tests can wait on them
type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	frames chan frame
	next   int64
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)

	c := &wsClient{t: t, conn: conn, frames: make(chan frame, 256)}
	go func() {
		defer close(c.frames)
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			c.frames <- f
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return c
}

func (c *wsClient) send(typ string, data interface{}) int64 {
	c.t.Helper()
	c.next++
	msg := map[string]interface{}{"type": typ, "ack": c.next}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(c.t, c.conn.WriteJSON(msg))
	return c.next
}

// request sends a request and decodes its reply into out
func (c *wsClient) request(typ string, data interface{}, out interface{}) {
	c.t.Helper()
	ack := c.send(typ, data)
	f := c.await(func(f frame) bool { return f.Event == models.EventAck && f.Ack == ack })
	if out != nil {
		require.NoError(c.t, json.Unmarshal(f.Data, out))
	}
}

// event waits for the named broadcast, skipping anything else
func (c *wsClient) event(name string, out interface{}) {
	c.t.Helper()
	f := c.await(func(f frame) bool { return f.Event == name })
	if out != nil {
		require.NoError(c.t, json.Unmarshal(f.Data, out))
	}
}

func (c *wsClient) await(match func(frame) bool) frame {
	c.t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				c.t.Fatal("connection closed while waiting for frame")
			}
			if match(f) {
				return f
			}
		case <-timeout:
			c.t.Fatal("timed out waiting for frame")
		}
	}
}

func TestSocketRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	var created models.CreateRoomResponse
	alice.request(models.RequestCreateRoom, models.CreateRoomRequest{Username: "alice"}, &created)
	require.True(t, created.Success, created.Error)
	assert.True(t, created.IsHost)
	require.Len(t, created.RoomCode, 6)

	var joined models.JoinRoomResponse
	bob.request(models.RequestJoinRoom, models.JoinRoomRequest{RoomCode: created.RoomCode, Username: "bob"}, &joined)
	require.True(t, joined.Success, joined.Error)
	assert.False(t, joined.IsHost)
	assert.Len(t, joined.Players, 2)

	var playerJoined models.PlayerJoinedEvent
	alice.event(models.EventPlayerJoined, &playerJoined)
	assert.Equal(t, "bob", playerJoined.Username)

	var started models.StartGameResponse
	alice.request(models.RequestStartGame, models.StartGameRequest{Topic: "space", Difficulty: models.DifficultyEasy}, &started)
	require.True(t, started.Success, started.Error)

	var gameStarted models.GameStartedEvent
	bob.event(models.EventGameStarted, &gameStarted)
	assert.Equal(t, "space", gameStarted.Topic)
	assert.Equal(t, models.DefaultTotalQuestions, gameStarted.TotalQuestions)

	var q models.NewQuestionEvent
	bob.event(models.EventNewQuestion, &q)
	assert.Equal(t, 1, q.Question.QuestionNumber)
	assert.NotEmpty(t, q.Question.ID)

	// First generated question has correct index 0
	var bobAnswer models.SubmitAnswerResponse
	bob.request(models.RequestSubmitAnswer, models.SubmitAnswerRequest{QuestionID: q.Question.ID, AnswerIndex: 0}, &bobAnswer)
	require.True(t, bobAnswer.Success, bobAnswer.Error)
	assert.True(t, bobAnswer.IsCorrect)
	assert.Equal(t, 10, bobAnswer.PlayerScore)

	var aliceAnswer models.SubmitAnswerResponse
	alice.request(models.RequestSubmitAnswer, models.SubmitAnswerRequest{QuestionID: q.Question.ID, AnswerIndex: 2}, &aliceAnswer)
	require.True(t, aliceAnswer.Success, aliceAnswer.Error)
	assert.False(t, aliceAnswer.IsCorrect)
	assert.Equal(t, 0, aliceAnswer.CorrectAnswer)

	// Everyone answered, so the reveal comes before the clock runs out
	var reveal models.RevealAnswerEvent
	alice.event(models.EventRevealAnswer, &reveal)
	assert.Equal(t, q.Question.ID, reveal.QuestionID)
	assert.False(t, reveal.TimedOut)
}

func TestSocketRejectsBadFrames(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := dial(t, srv)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var result models.Result
	f := c.await(func(f frame) bool { return f.Event == models.EventAck })
	require.NoError(t, json.Unmarshal(f.Data, &result))
	assert.False(t, result.Success)
	assert.Equal(t, coordinator.ErrBadRequest.Error(), result.Error)

	c.request("dance", nil, &result)
	assert.False(t, result.Success)
	assert.Equal(t, coordinator.ErrUnknownRequest.Error(), result.Error)

	c.request(models.RequestJoinRoom, "not an object", &result)
	assert.False(t, result.Success)
	assert.Equal(t, coordinator.ErrBadRequest.Error(), result.Error)
}

func TestSocketRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *cliparse.Config) {
		cfg.MessageRate = 0.001
		cfg.MessageBurst = 2
	})
	c := dial(t, srv)

	check := models.CheckRoomRequest{RoomCode: "ABC123"}
	for i := 0; i < 2; i++ {
		var resp models.CheckRoomResponse
		c.request(models.RequestCheckRoom, check, &resp)
		require.True(t, resp.Success, resp.Error)
		assert.False(t, resp.Exists)
	}

	var limited models.Result
	c.request(models.RequestCheckRoom, check, &limited)
	assert.False(t, limited.Success)
	assert.Equal(t, "Too many requests", limited.Error)
}

func TestSocketDisconnectNotifiesRoom(t *testing.T) {
	srv, _, hub := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	var created models.CreateRoomResponse
	alice.request(models.RequestCreateRoom, models.CreateRoomRequest{Username: "alice"}, &created)
	require.True(t, created.Success, created.Error)

	var joined models.JoinRoomResponse
	bob.request(models.RequestJoinRoom, models.JoinRoomRequest{RoomCode: created.RoomCode, Username: "bob"}, &joined)
	require.True(t, joined.Success, joined.Error)
	assert.Equal(t, 2, hub.Len())

	bob.conn.Close()

	var left models.PlayerLeftEvent
	alice.event(models.EventPlayerDisconnected, &left)
	assert.Equal(t, "bob", left.Username)
	assert.Eventually(t, func() bool { return hub.Len() == 1 }, 3*time.Second, 10*time.Millisecond)

	// The same username can pick the seat back up
	carol := dial(t, srv)
	var back models.JoinRoomResponse
	carol.request(models.RequestReconnectRoom, models.JoinRoomRequest{RoomCode: created.RoomCode, Username: "bob"}, &back)
	require.True(t, back.Success, back.Error)
	assert.True(t, back.Reconnected)
	assert.Equal(t, joined.PlayerID, back.PlayerID)
}

func TestSocketRejectsForeignOrigin(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *cliparse.Config) {
		cfg.AllowedOrigins = []string{"https://quiz.example"}
	})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://quiz.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()
}

func TestHubDropsSlowConnection(t *testing.T) {
	hub := NewHub()
	c := &client{id: "slow", send: make(chan []byte, 1)}
	hub.register(c)

	hub.Send("slow", models.EventTimeUp, models.TimeUpEvent{QuestionID: "q1"})
	assert.Equal(t, 1, hub.Len())

	// Queue is full: the connection is dropped instead of blocking
	hub.Send("slow", models.EventTimeUp, models.TimeUpEvent{QuestionID: "q2"})
	assert.Equal(t, 0, hub.Len())

	first, ok := <-c.send
	require.True(t, ok)
	var msg frame
	require.NoError(t, json.Unmarshal(first, &msg))
	assert.Equal(t, models.EventTimeUp, msg.Event)
	assert.JSONEq(t, `{"questionId":"q1"}`, string(msg.Data))

	_, ok = <-c.send
	assert.False(t, ok, "queue should be closed")

	// Sends to unknown or dropped connections are ignored
	hub.Send("slow", models.EventTimeUp, nil)
	hub.unregister("slow")
}

func TestHubReplyCarriesAck(t *testing.T) {
	hub := NewHub()
	c := &client{id: "c1", send: make(chan []byte, 4)}
	hub.register(c)

	hub.reply("c1", 42, models.Failure("Room is full"))

	var msg frame
	require.NoError(t, json.Unmarshal(<-c.send, &msg))
	assert.Equal(t, models.EventAck, msg.Event)
	assert.Equal(t, int64(42), msg.Ack)
	assert.JSONEq(t, `{"success":false,"error":"Room is full"}`, string(msg.Data))
}
