package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/prompts"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, reply string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGroqClientReply(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, "Hi, this is Karen.", &got)
	client := NewGroqClient(srv.URL+"/", "test-key", "llama-test")

	turns := []prompts.Turn{
		{Role: prompts.TurnSystem, Content: "you are karen"},
		{Role: prompts.TurnAgent, Content: "hello?"},
		{Role: prompts.TurnUser, Content: "Hi Karen, how can I help?"},
	}
	reply, err := client.Reply(context.Background(), turns, consultation.ReplyParams)
	require.NoError(t, err)
	assert.Equal(t, "Hi, this is Karen.", reply)

	assert.Equal(t, "llama-test", got.Model)
	assert.InDelta(t, 0.8, got.Temperature, 1e-9)
	assert.Equal(t, 300, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
	assert.Equal(t, "Hi Karen, how can I help?", got.Messages[2].Content)
}

func TestGroqClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewGroqClient(srv.URL+"/", "test-key", "")
	_, err := client.Reply(context.Background(), []prompts.Turn{{Role: prompts.TurnUser, Content: "hi"}}, consultation.OpeningParams)
	assert.Error(t, err)
}

func TestGroqClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	client := NewGroqClient(srv.URL+"/", "test-key", "m")
	_, err := client.Reply(context.Background(), nil, consultation.ReplyParams)
	assert.ErrorContains(t, err, "no choices")
}
