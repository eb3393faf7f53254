package websocket

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
)

func TestClientRoundTrip(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		client := hub.RegisterClient(conn, "sess-1")
		client.MessageHandler = func(c *Client, msg Message) {
			c.SendMessage(Message{Type: TypePersonaMessage, Content: "echo: " + msg.Content})
		}
		go client.WritePump()
		client.ReadPump()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: TypeTraineeMessage, Content: "hello"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypePersonaMessage, got.Type)
	assert.Equal(t, "echo: hello", got.Content)
	assert.Equal(t, "sess-1", got.SessionID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeError, got.Type)

	assert.Equal(t, 1, hub.Count())
}

func TestSendMessageAfterClose(t *testing.T) {
	c := NewClient(nil, "sess-2")
	c.SendMessage(Message{Type: TypeResult, Data: map[string]int{"overall_score": 80}})

	raw := <-c.Send
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "result", got["type"])
	assert.Equal(t, "sess-2", got["session_id"])

	c.closeSend()
	assert.NotPanics(t, func() { c.SendMessage(Message{Type: TypeError}) })
}
