package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToOpenAIMessages(t *testing.T) {
	out := toOpenAIMessages([]Message{System("s"), User("u"), Assistant("a")})
	require.Len(t, out, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, out[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, out[2].Role)
	assert.Equal(t, "a", out[2].Content)
}

func TestClassifyError(t *testing.T) {
	err := classifyError(context.Background(), fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrTimeout))

	err = classifyError(context.Background(), errors.New("connection refused"))
	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestOpenAIModelInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  ciao  "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	m := NewOpenAIModel(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	out, err := m.Invoke(context.Background(), Request{Messages: []Message{User("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "ciao", out)
}

func TestOpenAIModelTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	m := NewOpenAIModel(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Timeout: 50 * time.Millisecond}, zap.NewNop())
	_, err := m.Invoke(context.Background(), Request{Messages: []Message{User("hi")}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}
