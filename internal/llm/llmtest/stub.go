// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/xaenox/tracely/internal/llm"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Stub answers invocations with scripted replies in order. Once the script is
// exhausted the last reply is repeated.
type Stub struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

func NewStub(replies ...Reply) *Stub {
	return &Stub{replies: replies}
}

// Text returns a stub that always answers text.
func Text(text string) *Stub {
	return NewStub(Reply{Text: text})
}

// Failing returns a stub that always fails with err.
func Failing(err error) *Stub {
	return NewStub(Reply{Err: err})
}

func (s *Stub) Invoke(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", llm.ErrEmptyResponse
	}
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	r := s.replies[idx]
	return r.Text, r.Err
}

// Calls returns the number of invocations so far.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent request, or the zero value.
func (s *Stub) LastRequest() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return llm.Request{}
	}
	return s.requests[len(s.requests)-1]
}

var _ llm.Model = (*Stub)(nil)
