// Package llm is the boundary to the generative language model. Callers build
// a Request, get raw text back and validate it themselves.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrTimeout is returned when the model does not answer within the budget.
	ErrTimeout = errors.New("model invocation timed out")
	// ErrTransport covers network, authentication and API failures.
	ErrTransport = errors.New("model invocation failed")
	// ErrEmptyResponse is returned when the model answers with no choices.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Role of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single prompt message.
type Message struct {
	Role    Role
	Content string
}

// Request describes one model invocation. Zero values fall back to the
// defaults of the Model implementation.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response when supported.
	JSON bool
}

// Model invokes a generative model once and returns its raw text.
type Model interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// System is shorthand for a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User is shorthand for a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant is shorthand for an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }
